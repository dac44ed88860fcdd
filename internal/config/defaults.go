package config

const (
	defaultWorkspace            = "~"
	defaultLogDir               = "~/.local/share/taskqueue/logs"
	defaultRunDir               = "~/.local/share/taskqueue/run"
	defaultMaxAttempts          = 3
	defaultShutdownGraceSeconds = 30
	defaultReclaimInterval      = 300
	defaultWatchEnabled         = true
	defaultDebounceMillis       = 500
	defaultFallbackSeconds      = 60
	defaultBackendCommand       = "agent-worker"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			Workspace: defaultWorkspace,
			LogDir:    defaultLogDir,
			RunDir:    defaultRunDir,
		},
		Queue: Queue{
			MaxAttempts:          defaultMaxAttempts,
			ShutdownGraceSeconds: defaultShutdownGraceSeconds,
			ReclaimInterval:      defaultReclaimInterval,
		},
		Watch: Watch{
			Enabled:         defaultWatchEnabled,
			DebounceMillis:  defaultDebounceMillis,
			FallbackSeconds: defaultFallbackSeconds,
		},
		Backend: Backend{
			Command: defaultBackendCommand,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
