package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateBackup(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateEngine() error {
	switch c.Engine.Kind {
	case "diff":
		if c.Engine.DiffBinary == "" {
			return errors.New("engine.diff_binary must be set when engine.kind is diff")
		}
	case "snapshot":
		if c.Engine.SnapshotBinary == "" {
			return errors.New("engine.snapshot_binary must be set when engine.kind is snapshot")
		}
	default:
		return fmt.Errorf("engine.kind must be diff or snapshot, got %q", c.Engine.Kind)
	}
	if c.Engine.TimeoutSeconds < 0 {
		return errors.New("engine.timeout_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Mode {
	case "adjacent":
		return nil
	case "global":
		if c.Storage.GlobalRoot == "" {
			return errors.New("storage.global_root must be set when storage.mode is global")
		}
		if c.Storage.VaultRoot == "" {
			return errors.New("storage.vault_root must be set when storage.mode is global")
		}
		return nil
	default:
		return fmt.Errorf("storage.mode must be adjacent or global, got %q", c.Storage.Mode)
	}
}

func (c *Config) validateBackup() error {
	if c.Backup.IntervalFloorSeconds < 0 {
		return errors.New("backup.interval_floor_seconds must not be negative")
	}
	if c.Backup.MinFreeSpaceMiB < 0 {
		return errors.New("backup.min_free_space_mib must not be negative")
	}
	if c.Backup.CompressionMinBytes < 0 {
		return errors.New("backup.compression_min_bytes must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
}
