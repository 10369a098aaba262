package versions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"keepsake/internal/config"
	"keepsake/internal/logging"
)

// NoBackupsVersion is the sentinel current version for an asset with
// no recorded backups.
const NoBackupsVersion = "000"

// maxVersion caps the 3-digit label space. Requests beyond it are
// clamped, never wrapped.
const maxVersion = 999

// Record is one monotonic version label correlated to an engine
// increment for an (asset, repository) pair.
type Record struct {
	AssetPath       string
	RepositoryPath  string
	Version         string
	IncrementID     string
	Timestamp       time.Time
	SourceSizeBytes int64
	IsLatest        bool
}

// Store manages version persistence backed by SQLite.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open initializes or connects to the versions database under the
// configured data directory.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "versions.db"), logger)
}

// OpenPath opens the database at an explicit location.
func OpenPath(dbPath string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, logger: logging.OrNop(logger)}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the on-disk database location.
func (s *Store) Path() string {
	return s.path
}

// NextVersion derives the next label for the pair from the count of
// existing records, zero-padded to 3 digits and clamped to 999 with a
// logged warning. The number is not persisted; a failed backup simply
// never records it.
func (s *Store) NextVersion(ctx context.Context, assetPath, repoPath string) (string, error) {
	count, err := s.countRecords(ctx, assetPath, repoPath)
	if err != nil {
		return "", err
	}
	next := count + 1
	if next > maxVersion {
		s.logger.Warn("version space exhausted, clamping",
			slog.String("asset", assetPath),
			slog.Int("count", count))
		next = maxVersion
	}
	return fmt.Sprintf("%03d", next), nil
}

// RecordBackup appends a record for a successful backup and moves the
// is_latest flag to it.
func (s *Store) RecordBackup(ctx context.Context, rec Record) (Record, error) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE version_records SET is_latest = 0
		 WHERE asset_path = ? AND repository_path = ? AND is_latest = 1`,
		rec.AssetPath, rec.RepositoryPath,
	); err != nil {
		return Record{}, fmt.Errorf("clear latest flag: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO version_records (
		     asset_path, repository_path, version, increment_id,
		     created_at, source_size_bytes, is_latest
		 ) VALUES (?, ?, ?, ?, ?, ?, 1)`,
		rec.AssetPath, rec.RepositoryPath, rec.Version, rec.IncrementID,
		rec.Timestamp.UTC().Format(time.RFC3339Nano), rec.SourceSizeBytes,
	); err != nil {
		return Record{}, fmt.Errorf("insert version record: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO asset_state (asset_path, last_backup_at) VALUES (?, ?)
		 ON CONFLICT(asset_path) DO UPDATE SET last_backup_at = excluded.last_backup_at`,
		rec.AssetPath, rec.Timestamp.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return Record{}, fmt.Errorf("update last backup time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("commit version record: %w", err)
	}
	rec.IsLatest = true
	return rec, nil
}

// History returns all records for the pair sorted by version. An
// unknown pair yields an empty list, never an error.
func (s *Store) History(ctx context.Context, assetPath, repoPath string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asset_path, repository_path, version, increment_id,
		        created_at, source_size_bytes, is_latest
		 FROM version_records
		 WHERE asset_path = ? AND repository_path = ?
		 ORDER BY version ASC, id ASC`,
		assetPath, repoPath,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var createdAt string
		var isLatest int
		if err := rows.Scan(&rec.AssetPath, &rec.RepositoryPath, &rec.Version,
			&rec.IncrementID, &createdAt, &rec.SourceSizeBytes, &isLatest); err != nil {
			return nil, fmt.Errorf("scan version record: %w", err)
		}
		rec.Timestamp, _ = time.Parse(time.RFC3339Nano, createdAt)
		rec.IsLatest = isLatest == 1
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CurrentVersion reports the latest label for the pair, or the "000"
// sentinel when no backups exist yet.
func (s *Store) CurrentVersion(ctx context.Context, assetPath, repoPath string) (string, error) {
	var version string
	err := s.db.QueryRowContext(ctx,
		`SELECT version FROM version_records
		 WHERE asset_path = ? AND repository_path = ? AND is_latest = 1
		 LIMIT 1`,
		assetPath, repoPath,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return NoBackupsVersion, nil
	}
	if err != nil {
		return "", fmt.Errorf("query current version: %w", err)
	}
	return version, nil
}

// LastBackupTime reports when the asset was last backed up, with ok
// false when it never was.
func (s *Store) LastBackupTime(ctx context.Context, assetPath string) (time.Time, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT last_backup_at FROM asset_state WHERE asset_path = ?", assetPath,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query last backup time: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last backup time: %w", err)
	}
	return ts, true, nil
}

// Rebind repoints an asset's records after a rename so history stays
// queryable under the asset's new identity.
func (s *Store) Rebind(ctx context.Context, oldAsset, newAsset, oldRepo, newRepo string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE version_records SET asset_path = ?, repository_path = ?
		 WHERE asset_path = ? AND repository_path = ?`,
		newAsset, newRepo, oldAsset, oldRepo,
	); err != nil {
		return fmt.Errorf("rebind version records: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE OR REPLACE asset_state SET asset_path = ? WHERE asset_path = ?`,
		newAsset, oldAsset,
	); err != nil {
		return fmt.Errorf("rebind asset state: %w", err)
	}
	return tx.Commit()
}

func (s *Store) countRecords(ctx context.Context, assetPath, repoPath string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM version_records
		 WHERE asset_path = ? AND repository_path = ?`,
		assetPath, repoPath,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count version records: %w", err)
	}
	return count, nil
}
