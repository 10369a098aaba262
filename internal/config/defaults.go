package config

const (
	defaultEngineKind           = "diff"
	defaultDiffBinary           = "rdiff-backup"
	defaultSnapshotBinary       = "restic"
	defaultEngineTimeoutSeconds = 300
	defaultStorageMode          = "adjacent"
	defaultGlobalRoot           = "~/.local/share/keepsake/backups"
	defaultDataDir              = "~/.local/share/keepsake"
	defaultLogDir               = "~/.local/share/keepsake/logs"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultIntervalFloorSeconds = 30
	defaultMinFreeSpaceMiB      = 200
	defaultCompressionMinBytes  = 64 * 1024
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Engine: Engine{
			Kind:           defaultEngineKind,
			DiffBinary:     defaultDiffBinary,
			SnapshotBinary: defaultSnapshotBinary,
			TimeoutSeconds: defaultEngineTimeoutSeconds,
		},
		Storage: Storage{
			Mode:       defaultStorageMode,
			GlobalRoot: defaultGlobalRoot,
		},
		Backup: Backup{
			Compress:             true,
			CompressionMinBytes:  defaultCompressionMinBytes,
			IntervalFloorSeconds: defaultIntervalFloorSeconds,
			MinFreeSpaceMiB:      defaultMinFreeSpaceMiB,
		},
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
