package integrity

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"keepsake/internal/fileutil"
	"keepsake/internal/repopath"
)

func adjacentTracker(t *testing.T) *Tracker {
	t.Helper()
	loc, err := repopath.New(repopath.ModeAdjacent, "", "")
	if err != nil {
		t.Fatalf("locator: %v", err)
	}
	return New(loc, nil)
}

func makeRepo(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(path, "rdiff-backup-data"), 0o755); err != nil {
		t.Fatalf("mkdir repo: %v", err)
	}
}

func TestOnRenameMovesRepository(t *testing.T) {
	base := t.TempDir()
	oldAsset := filepath.Join(base, "A.blend")
	newAsset := filepath.Join(base, "B.blend")
	oldRepo := oldAsset + repopath.Suffix
	newRepo := newAsset + repopath.Suffix
	makeRepo(t, oldRepo)

	tracker := adjacentTracker(t)
	if err := tracker.OnRename(oldAsset, newAsset); err != nil {
		t.Fatalf("OnRename: %v", err)
	}

	if fileutil.DirExists(oldRepo) {
		t.Error("old repository still present")
	}
	if !fileutil.DirExists(newRepo) {
		t.Error("new repository missing")
	}

	chain, err := tracker.HistoricalPaths(newAsset)
	if err != nil {
		t.Fatalf("HistoricalPaths: %v", err)
	}
	want := []string{oldAsset, newAsset}
	if !reflect.DeepEqual(chain, want) {
		t.Errorf("chain = %v, want %v", chain, want)
	}
}

func TestOnRenameAcrossDirectories(t *testing.T) {
	base := t.TempDir()
	oldAsset := filepath.Join(base, "scenes", "A.blend")
	newAsset := filepath.Join(base, "archive", "deep", "A.blend")
	makeRepo(t, oldAsset+repopath.Suffix)

	tracker := adjacentTracker(t)
	if err := tracker.OnRename(oldAsset, newAsset); err != nil {
		t.Fatalf("OnRename: %v", err)
	}
	if !fileutil.DirExists(newAsset + repopath.Suffix) {
		t.Error("repository not relocated; destination parent should have been created")
	}
}

func TestOnRenameArchivesOccupiedDestination(t *testing.T) {
	base := t.TempDir()
	oldAsset := filepath.Join(base, "A.blend")
	newAsset := filepath.Join(base, "B.blend")
	oldRepo := oldAsset + repopath.Suffix
	newRepo := newAsset + repopath.Suffix
	makeRepo(t, oldRepo)
	makeRepo(t, newRepo)
	sentinel := filepath.Join(newRepo, "sentinel")
	if err := os.WriteFile(sentinel, []byte("occupied"), 0o644); err != nil {
		t.Fatalf("write sentinel: %v", err)
	}

	tracker := adjacentTracker(t)
	if err := tracker.OnRename(oldAsset, newAsset); err != nil {
		t.Fatalf("OnRename: %v", err)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	var archived string
	for _, entry := range entries {
		if strings.Contains(entry.Name(), ".archived-") {
			archived = filepath.Join(base, entry.Name())
		}
	}
	if archived == "" {
		t.Fatal("occupied destination was not archived")
	}
	if !fileutil.FileExists(filepath.Join(archived, "sentinel")) {
		t.Error("archived repository lost its contents")
	}
	if !fileutil.DirExists(newRepo) {
		t.Error("relocated repository missing at destination")
	}
}

func TestOnRenameWithoutRepositoryRecordsLedgerOnly(t *testing.T) {
	base := t.TempDir()
	oldAsset := filepath.Join(base, "A.blend")
	newAsset := filepath.Join(base, "B.blend")

	tracker := adjacentTracker(t)
	if err := tracker.OnRename(oldAsset, newAsset); err != nil {
		t.Fatalf("OnRename: %v", err)
	}
	chain, err := tracker.HistoricalPaths(newAsset)
	if err != nil {
		t.Fatalf("HistoricalPaths: %v", err)
	}
	if len(chain) != 2 || chain[0] != oldAsset {
		t.Errorf("chain = %v", chain)
	}
}

func TestOnRenameSamePathIsIdempotent(t *testing.T) {
	base := t.TempDir()
	asset := filepath.Join(base, "A.blend")
	makeRepo(t, asset+repopath.Suffix)

	tracker := adjacentTracker(t)
	for i := 0; i < 3; i++ {
		if err := tracker.OnRename(asset, asset); err != nil {
			t.Fatalf("OnRename #%d: %v", i, err)
		}
	}

	entries, err := loadLedger(asset + repopath.Suffix)
	if err != nil {
		t.Fatalf("loadLedger: %v", err)
	}
	if len(entries) > 1 {
		t.Errorf("ledger grew beyond a single entry: %d", len(entries))
	}
	if dirs, _ := filepath.Glob(filepath.Join(base, "*.archived-*")); len(dirs) != 0 {
		t.Errorf("no archive expected, found %v", dirs)
	}
}

func TestOnRenameGlobalModeIsNoop(t *testing.T) {
	base := t.TempDir()
	loc, err := repopath.New(repopath.ModeGlobal, filepath.Join(base, "backups"), base)
	if err != nil {
		t.Fatalf("locator: %v", err)
	}
	tracker := New(loc, nil)

	oldAsset := filepath.Join(base, "A.blend")
	newAsset := filepath.Join(base, "B.blend")
	if err := tracker.OnRename(oldAsset, newAsset); err != nil {
		t.Fatalf("OnRename: %v", err)
	}
	if fileutil.DirExists(filepath.Join(base, "backups")) {
		t.Error("global mode must not touch the filesystem")
	}
}

func TestHistoricalPathsFollowsChain(t *testing.T) {
	base := t.TempDir()
	a := filepath.Join(base, "A.blend")
	b := filepath.Join(base, "B.blend")
	c := filepath.Join(base, "C.blend")
	makeRepo(t, a+repopath.Suffix)

	tracker := adjacentTracker(t)
	if err := tracker.OnRename(a, b); err != nil {
		t.Fatalf("OnRename a->b: %v", err)
	}
	if err := tracker.OnRename(b, c); err != nil {
		t.Fatalf("OnRename b->c: %v", err)
	}

	chain, err := tracker.HistoricalPaths(c)
	if err != nil {
		t.Fatalf("HistoricalPaths: %v", err)
	}
	want := []string{a, b, c}
	if !reflect.DeepEqual(chain, want) {
		t.Errorf("chain = %v, want %v", chain, want)
	}
}

func TestHistoricalPathsTerminatesOnCorruptCycle(t *testing.T) {
	base := t.TempDir()
	a := filepath.Join(base, "A.blend")
	b := filepath.Join(base, "B.blend")
	repo := b + repopath.Suffix

	// Hand-craft a cyclic ledger to simulate corruption.
	now := time.Now().UTC()
	entries := []Entry{
		{OldPath: b, NewPath: a, Timestamp: now},
		{OldPath: a, NewPath: b, Timestamp: now},
	}
	for _, e := range entries {
		if err := appendEntry(repo, e); err != nil {
			t.Fatalf("appendEntry: %v", err)
		}
	}

	tracker := adjacentTracker(t)
	chain, err := tracker.HistoricalPaths(b)
	if err != nil {
		t.Fatalf("HistoricalPaths: %v", err)
	}
	if len(chain) > 3 {
		t.Errorf("cycle not capped: %v", chain)
	}
}

func TestLedgerBoundedToMaxEntries(t *testing.T) {
	repo := filepath.Join(t.TempDir(), "A.blend"+repopath.Suffix)
	for i := 0; i < maxLedgerEntries+20; i++ {
		entry := Entry{OldPath: "old", NewPath: "new", Timestamp: time.Now().UTC()}
		if err := appendEntry(repo, entry); err != nil {
			t.Fatalf("appendEntry #%d: %v", i, err)
		}
	}
	entries, err := loadLedger(repo)
	if err != nil {
		t.Fatalf("loadLedger: %v", err)
	}
	if len(entries) != maxLedgerEntries {
		t.Errorf("ledger length = %d, want %d", len(entries), maxLedgerEntries)
	}
}
