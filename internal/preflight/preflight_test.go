package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"keepsake/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace_Disabled(t *testing.T) {
	result := CheckFreeSpace("space", t.TempDir(), 0)
	if !result.Passed {
		t.Fatalf("expected disabled check to pass, got: %s", result.Detail)
	}
}

func TestCheckFreeSpace_SmallRequirement(t *testing.T) {
	// One MiB of headroom is a safe assumption for any test filesystem.
	result := CheckFreeSpace("space", t.TempDir(), 1)
	if !result.Passed {
		t.Fatalf("expected pass for 1 MiB requirement, got: %s", result.Detail)
	}
	if result.Detail == "" {
		t.Fatal("expected availability detail")
	}
}

func TestRunAllReportsEngineAndDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())

	results := RunAll(cfg)
	if len(results) < 3 {
		t.Fatalf("expected engine and directory checks, got %d results", len(results))
	}
	for _, result := range results {
		if !result.Passed {
			t.Errorf("check %q failed: %s", result.Name, result.Detail)
		}
	}
}

func TestRunBackupChecksFailsOnMissingParent(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	results := RunBackupChecks(cfg, filepath.Join(t.TempDir(), "absent"))
	failed := Failed(results)
	if len(failed) == 0 {
		t.Fatal("expected repository parent check to fail")
	}
}
