// Command reframe is the CLI companion to reframed. It talks to the daemon
// over its HTTP API to submit uploads, inspect job status, and check
// daemon health.
package main
