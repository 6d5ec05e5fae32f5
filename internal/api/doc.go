// Package api implements the job submission and status surface shared by
// the HTTP server and the CLI client.
package api
