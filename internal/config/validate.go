package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Paths.ExportRoot == "" {
		return errors.New("paths.export_root must be set")
	}
	if c.Merge.TimelinesDir == "" {
		return errors.New("merge.timelines_dir must be set")
	}
	if c.Merge.LockAttempts < 1 {
		return errors.New("merge.lock_attempts must be at least 1")
	}
	if c.Merge.LockBackoffMS < 0 {
		return errors.New("merge.lock_backoff_ms must not be negative")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return errors.New("journal.path must be set when the journal is enabled")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
