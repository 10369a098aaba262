// Package testsupport holds shared helpers for package tests: canned
// configs rooted in per-test temp directories, stub engine binaries on
// PATH, and sized fixture files.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"keepsake/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per
// test. The data, log, and vault directories all exist on return.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Storage.GlobalRoot = filepath.Join(base, "backups")
	cfgVal.Storage.VaultRoot = filepath.Join(base, "vault")

	for _, dir := range []string{cfgVal.Paths.DataDir, cfgVal.Paths.LogDir, cfgVal.Storage.VaultRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithEngineKind selects the engine family on the test config.
func WithEngineKind(kind string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.Kind = kind
	}
}

// WithStorageMode selects the repository placement policy.
func WithStorageMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.Mode = mode
	}
}

// WithStubbedBinaries writes stub executables for the provided names
// and prepends them to PATH. If names is empty, both engine binaries
// are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"rdiff-backup", "restic"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
