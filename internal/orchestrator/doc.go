// Package orchestrator drives jobs through the transformation pipeline. A
// dispatched job runs in its own goroutine, advancing the registry status
// through each stage label and finishing in a terminal completed or failed
// state. At most one execution exists per job identifier, and the number of
// simultaneously running pipelines is capped by configuration.
package orchestrator
