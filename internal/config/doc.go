// Package config loads, validates, and normalizes reframe configuration.
//
// Configuration lives in a TOML file (~/.config/reframe/config.toml or
// ./reframe.toml). Load applies defaults, expands ~ in path fields, and runs
// a validation pass so the rest of the system can assume a usable config.
// EnsureDirectories creates the storage, data, and log directories the daemon
// needs at startup.
package config
