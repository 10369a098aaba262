package config

import "strings"

// normalize expands user paths and lowercases enumerated fields so the
// rest of the system never sees a tilde or mixed-case mode name.
func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if strings.TrimSpace(c.Storage.GlobalRoot) != "" {
		if c.Storage.GlobalRoot, err = expandPath(c.Storage.GlobalRoot); err != nil {
			return err
		}
	}
	if strings.TrimSpace(c.Storage.VaultRoot) != "" {
		if c.Storage.VaultRoot, err = expandPath(c.Storage.VaultRoot); err != nil {
			return err
		}
	}

	c.Engine.Kind = strings.ToLower(strings.TrimSpace(c.Engine.Kind))
	c.Storage.Mode = strings.ToLower(strings.TrimSpace(c.Storage.Mode))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Engine.DiffBinary = strings.TrimSpace(c.Engine.DiffBinary)
	c.Engine.SnapshotBinary = strings.TrimSpace(c.Engine.SnapshotBinary)
	return nil
}
