// Package registry persists job records in SQLite and is the single source
// of truth for job state.
//
// The Store manages the database connection, schema initialization, and the
// lifecycle writes the orchestrator performs: Create, UpdateStatus, Complete,
// and Fail. Reads return snapshot copies scanned out of the database, so a
// concurrent status poll never observes a partially written record. SQLite
// serializes the per-record writes; busy retries absorb writer contention.
//
// The database is transient storage for in-flight jobs, not an archive: on
// daemon startup any record left in a non-terminal status by a previous
// process is failed over, and the optional retention sweep evicts old
// terminal records.
package registry
