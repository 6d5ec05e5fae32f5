package config

const (
	defaultStorageDir           = "~/.local/share/reframe/storage"
	defaultDataDir              = "~/.local/share/reframe/data"
	defaultLogDir               = "~/.local/share/reframe/logs"
	defaultAPIBind              = "127.0.0.1:8351"
	defaultMaxUploadMiB         = 512
	defaultMaxConcurrentJobs    = 4
	defaultDefaultStyle         = "cinematic"
	defaultFrameChunkKiB        = 256
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultRetentionMaxAgeHours = 24
	defaultRetentionSweepMins   = 15
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StorageDir: defaultStorageDir,
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
		},
		Server: Server{
			Bind:         defaultAPIBind,
			MaxUploadMiB: defaultMaxUploadMiB,
		},
		Pipeline: Pipeline{
			MaxConcurrentJobs: defaultMaxConcurrentJobs,
			DefaultStyle:      defaultDefaultStyle,
			FrameChunkKiB:     defaultFrameChunkKiB,
		},
		Retention: Retention{
			Enabled:           false,
			MaxAgeHours:       defaultRetentionMaxAgeHours,
			SweepIntervalMins: defaultRetentionSweepMins,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
