// Package testsupport provides helpers shared by package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"reframe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StorageDir = filepath.Join(base, "storage")
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Server.Bind = "127.0.0.1:0"
	cfg.Retention.Enabled = false

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithMaxConcurrentJobs overrides the pipeline concurrency cap.
func WithMaxConcurrentJobs(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.MaxConcurrentJobs = n
	}
}

// WithFrameChunkKiB overrides the frame extraction chunk size.
func WithFrameChunkKiB(kib int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.FrameChunkKiB = kib
	}
}

// WithDefaultStyle overrides the style applied to submissions that omit one.
func WithDefaultStyle(style string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.DefaultStyle = style
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StorageDir)
}
