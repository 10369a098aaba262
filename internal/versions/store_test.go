package versions

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "versions.db"), nil)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNextVersionStartsAtOne(t *testing.T) {
	store := openStore(t)
	got, err := store.NextVersion(context.Background(), "/vault/A.blend", "/vault/A.blend.keepsake")
	if err != nil {
		t.Fatalf("NextVersion: %v", err)
	}
	if got != "001" {
		t.Fatalf("NextVersion = %q, want 001", got)
	}
}

func TestRecordBackupSequenceAndLatestFlag(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	asset := "/vault/A.blend"
	repo := asset + ".keepsake"

	const n = 5
	for i := 0; i < n; i++ {
		version, err := store.NextVersion(ctx, asset, repo)
		if err != nil {
			t.Fatalf("NextVersion #%d: %v", i, err)
		}
		want := fmt.Sprintf("%03d", i+1)
		if version != want {
			t.Fatalf("NextVersion #%d = %q, want %q", i, version, want)
		}
		if _, err := store.RecordBackup(ctx, Record{
			AssetPath:       asset,
			RepositoryPath:  repo,
			Version:         version,
			IncrementID:     fmt.Sprintf("inc-%d", i),
			SourceSizeBytes: int64(1000 + i),
		}); err != nil {
			t.Fatalf("RecordBackup #%d: %v", i, err)
		}
	}

	records, err := store.History(ctx, asset, repo)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != n {
		t.Fatalf("history length = %d, want %d", len(records), n)
	}
	for i, rec := range records {
		want := fmt.Sprintf("%03d", i+1)
		if rec.Version != want {
			t.Errorf("record %d version = %q, want %q", i, rec.Version, want)
		}
		if rec.IsLatest != (i == n-1) {
			t.Errorf("record %q IsLatest = %v", rec.Version, rec.IsLatest)
		}
	}

	current, err := store.CurrentVersion(ctx, asset, repo)
	if err != nil {
		t.Fatalf("CurrentVersion: %v", err)
	}
	if current != "005" {
		t.Errorf("CurrentVersion = %q, want 005", current)
	}
}

func TestNextVersionNeverRepeatsAfterRecord(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	asset, repo := "/vault/A.blend", "/vault/A.blend.keepsake"

	assigned := map[string]bool{}
	for i := 0; i < 10; i++ {
		version, err := store.NextVersion(ctx, asset, repo)
		if err != nil {
			t.Fatalf("NextVersion: %v", err)
		}
		if assigned[version] {
			t.Fatalf("version %q assigned twice", version)
		}
		assigned[version] = true
		if _, err := store.RecordBackup(ctx, Record{AssetPath: asset, RepositoryPath: repo, Version: version}); err != nil {
			t.Fatalf("RecordBackup: %v", err)
		}
	}
}

func TestCurrentVersionSentinelWithoutBackups(t *testing.T) {
	store := openStore(t)
	current, err := store.CurrentVersion(context.Background(), "/vault/ghost.blend", "/nowhere")
	if err != nil {
		t.Fatalf("CurrentVersion: %v", err)
	}
	if current != NoBackupsVersion {
		t.Errorf("CurrentVersion = %q, want %q", current, NoBackupsVersion)
	}
	records, err := store.History(context.Background(), "/vault/ghost.blend", "/nowhere")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty history, got %d records", len(records))
	}
}

func TestNextVersionClampsAt999(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	asset, repo := "/vault/A.blend", "/vault/A.blend.keepsake"

	// Seed 999 records directly; walking NextVersion a thousand times
	// through the public API would be pointlessly slow.
	for i := 1; i <= maxVersion; i++ {
		if _, err := store.db.ExecContext(ctx,
			`INSERT INTO version_records (asset_path, repository_path, version, created_at, is_latest)
			 VALUES (?, ?, ?, ?, 0)`,
			asset, repo, fmt.Sprintf("%03d", i), time.Now().UTC().Format(time.RFC3339Nano),
		); err != nil {
			t.Fatalf("seed record %d: %v", i, err)
		}
	}

	got, err := store.NextVersion(ctx, asset, repo)
	if err != nil {
		t.Fatalf("NextVersion: %v", err)
	}
	if got != "999" {
		t.Fatalf("NextVersion = %q, want clamped 999", got)
	}
}

func TestLastBackupTime(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	asset, repo := "/vault/A.blend", "/vault/A.blend.keepsake"

	if _, ok, err := store.LastBackupTime(ctx, asset); err != nil || ok {
		t.Fatalf("expected no last backup time, got ok=%v err=%v", ok, err)
	}

	before := time.Now().UTC().Add(-time.Second)
	if _, err := store.RecordBackup(ctx, Record{AssetPath: asset, RepositoryPath: repo, Version: "001"}); err != nil {
		t.Fatalf("RecordBackup: %v", err)
	}
	ts, ok, err := store.LastBackupTime(ctx, asset)
	if err != nil || !ok {
		t.Fatalf("LastBackupTime: ok=%v err=%v", ok, err)
	}
	if ts.Before(before) {
		t.Errorf("last backup time %v unexpectedly old", ts)
	}
}

func TestRebindMovesHistoryToNewIdentity(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	oldAsset, newAsset := "/vault/A.blend", "/vault/B.blend"
	oldRepo, newRepo := oldAsset+".keepsake", newAsset+".keepsake"

	if _, err := store.RecordBackup(ctx, Record{AssetPath: oldAsset, RepositoryPath: oldRepo, Version: "001"}); err != nil {
		t.Fatalf("RecordBackup: %v", err)
	}
	if err := store.Rebind(ctx, oldAsset, newAsset, oldRepo, newRepo); err != nil {
		t.Fatalf("Rebind: %v", err)
	}

	records, err := store.History(ctx, newAsset, newRepo)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 1 || records[0].Version != "001" {
		t.Fatalf("history not rebound: %+v", records)
	}
	old, err := store.History(ctx, oldAsset, oldRepo)
	if err != nil {
		t.Fatalf("History old: %v", err)
	}
	if len(old) != 0 {
		t.Errorf("old identity still has %d records", len(old))
	}
}

func TestOpenPathRejectsSchemaMismatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "versions.db")
	store, err := OpenPath(dbPath, nil)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if _, err := store.db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump schema version: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := OpenPath(dbPath, nil); err == nil {
		t.Fatal("expected schema mismatch error")
	}
}
