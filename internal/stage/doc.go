// Package stage defines the contract between the orchestrator and the
// pipeline stage runners, plus the error taxonomy used to classify stage
// failures.
package stage
