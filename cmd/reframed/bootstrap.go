package main

import (
	"path/filepath"

	"log/slog"

	"reframe/internal/config"
	"reframe/internal/logging"
)

// buildLogger wires the configured format and level to stdout plus a
// rotating-friendly file under the log directory.
func buildLogger(cfg *config.Config) (*slog.Logger, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		OutputPaths: []string{
			"stdout",
			filepath.Join(cfg.Paths.LogDir, "reframed.log"),
		},
	})
}
