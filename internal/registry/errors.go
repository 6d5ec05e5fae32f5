package registry

import "errors"

// ErrNotFound is returned when a job identifier is unknown to the registry.
var ErrNotFound = errors.New("job not found")

// ErrDuplicateID is returned when Create is called with an identifier that
// already exists. Identifiers are generated, so hitting this indicates a
// broken generator rather than a recoverable condition.
var ErrDuplicateID = errors.New("duplicate job id")
