package config

const (
	defaultExportRoot    = "~/Nextcloud"
	defaultLogDir        = "~/.local/share/trackline/logs"
	defaultTimelinesDir  = "TIMELINES"
	defaultLockAttempts  = 5
	defaultLockBackoffMS = 200
	defaultJournalPath   = "~/.local/share/trackline/journal.db"
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ExportRoot: defaultExportRoot,
			LogDir:     defaultLogDir,
		},
		Merge: Merge{
			TimelinesDir:  defaultTimelinesDir,
			LockAttempts:  defaultLockAttempts,
			LockBackoffMS: defaultLockBackoffMS,
			DropYear2000:  true,
		},
		Journal: Journal{
			Enabled: true,
			Path:    defaultJournalPath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
