package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"keepsake/internal/config"
	"keepsake/internal/testsupport"
)

// diffEngineStub mimics just enough of rdiff-backup for CLI flows:
// version probe, backup (creates the data marker and a statistics
// artifact), increment listing, and restore.
const diffEngineStub = `#!/bin/sh
case "$*" in
  *--version*)
    echo "rdiff-backup 2.2.6"
    exit 0
    ;;
esac
for arg in "$@"; do last="$arg"; done
case "$3" in
  backup)
    mkdir -p "$last/rdiff-backup-data"
    cat > "$last/rdiff-backup-data/session_statistics.2026-01-01T00-00-00+00-00.data" <<'STATS'
SourceFiles 2
ChangedFiles 1
ChangedSourceSize 12345 (12.06 KB)
IncrementFileSize 2048 (2.00 KB)
TotalDestinationSizeChange 2048 (2.00 KB)
ElapsedTime 0.42 (0.42 seconds)
STATS
    exit 0
    ;;
  list)
    echo "increments.2026-01-01T00-00-00+00-00.dir   Thu Jan  1 00:00:00 2026"
    exit 0
    ;;
  restore)
    : > "$last"
    exit 0
    ;;
esac
exit 0
`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	vaultDir   string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)

	binDir := filepath.Join(base, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	for _, name := range []string{"rdiff-backup", "restic"} {
		if err := os.WriteFile(filepath.Join(binDir, name), []byte(diffEngineStub), 0o755); err != nil {
			t.Fatalf("write engine stub %s: %v", name, err)
		}
	}
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, vaultDir: cfg.Storage.VaultRoot}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestBackupHistoryRestoreFlow(t *testing.T) {
	env := setupCLITestEnv(t)
	asset := filepath.Join(env.vaultDir, "scene.blend")
	testsupport.WriteAsset(t, asset, 4096)

	out, _, err := runCLI(t, env.configPath, "backup", asset)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	requireContains(t, out, "version 001 recorded")

	// The interval floor blocks an immediate second backup unless --now.
	out, _, err = runCLI(t, env.configPath, "backup", asset)
	if err != nil {
		t.Fatalf("second backup: %v", err)
	}
	requireContains(t, out, "skipped")

	out, _, err = runCLI(t, env.configPath, "backup", "--now", asset)
	if err != nil {
		t.Fatalf("forced backup: %v", err)
	}
	requireContains(t, out, "version 002 recorded")

	out, _, err = runCLI(t, env.configPath, "history", "--increments", asset)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "current version 002")
	requireContains(t, out, "001")
	requireContains(t, out, "2026-01-01T00:00:00+00:00")

	out, _, err = runCLI(t, env.configPath, "restore", asset)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	requireContains(t, out, "restored (latest)")
}

func TestRestoreByVersionLabel(t *testing.T) {
	env := setupCLITestEnv(t)
	asset := filepath.Join(env.vaultDir, "scene.blend")
	testsupport.WriteAsset(t, asset, 2048)

	if _, _, err := runCLI(t, env.configPath, "backup", asset); err != nil {
		t.Fatalf("backup: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "restore", "--at", "001", asset)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	requireContains(t, out, "restored (001)")

	// The stub truncates the restore target.
	info, err := os.Stat(asset)
	if err != nil {
		t.Fatalf("stat restored asset: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("restore did not reach the engine, size = %d", info.Size())
	}

	_, _, err = runCLI(t, env.configPath, "restore", "--at", "042", asset)
	if err == nil {
		t.Fatal("expected restore of an unrecorded version to fail")
	}
	requireContains(t, err.Error(), "no recorded version 042")
}

func TestBackupMissingFileFails(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "backup", filepath.Join(env.vaultDir, "ghost.blend"))
	if err == nil {
		t.Fatal("expected backup of a missing file to fail")
	}
	requireContains(t, out, "source file not found")
}

func TestHistoryWithoutBackups(t *testing.T) {
	env := setupCLITestEnv(t)
	asset := filepath.Join(env.vaultDir, "fresh.blend")
	testsupport.WriteAsset(t, asset, 64)

	out, _, err := runCLI(t, env.configPath, "history", asset)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "no backups yet (version 000)")
}

func TestRenameFollowsAsset(t *testing.T) {
	env := setupCLITestEnv(t)
	oldAsset := filepath.Join(env.vaultDir, "A.blend")
	testsupport.WriteAsset(t, oldAsset, 512)

	if _, _, err := runCLI(t, env.configPath, "backup", oldAsset); err != nil {
		t.Fatalf("backup: %v", err)
	}

	newAsset := filepath.Join(env.vaultDir, "B.blend")
	if err := os.Rename(oldAsset, newAsset); err != nil {
		t.Fatalf("rename asset: %v", err)
	}
	out, _, err := runCLI(t, env.configPath, "rename", oldAsset, newAsset)
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	requireContains(t, out, "history follows the asset")

	if _, err := os.Stat(newAsset + ".keepsake"); err != nil {
		t.Fatalf("repository did not follow the asset: %v", err)
	}

	out, _, err = runCLI(t, env.configPath, "history", "--paths", newAsset)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "current version 001")
	requireContains(t, out, "A.blend")
}

func TestDoctorWithStubbedEngines(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "All checks passed.")
	requireContains(t, out, "rdiff-backup")
}
