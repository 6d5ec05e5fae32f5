// Package logging assembles structured slog loggers and formatting helpers
// used across reframe services.
//
// It owns the configurable console/JSON handlers, centralizes level and
// output plumbing, and exposes attribute helpers so orchestration and stage
// code tag log lines with job IDs, stage names, and request IDs in a uniform
// shape. The package also provides a no-op logger for tests and wiring code
// that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so new components
// emit data with the same shape as the rest of the system.
package logging
