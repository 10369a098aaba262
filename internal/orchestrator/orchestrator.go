package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"keepsake/internal/config"
	"keepsake/internal/engine"
	"keepsake/internal/fileutil"
	"keepsake/internal/integrity"
	"keepsake/internal/logging"
	"keepsake/internal/preflight"
	"keepsake/internal/repopath"
	"keepsake/internal/versions"
)

// lockRetryInterval paces cross-process lock acquisition attempts.
const lockRetryInterval = 250 * time.Millisecond

// SelectorLatest restores the most recent increment.
const SelectorLatest = "latest"

// BackupOptions tunes a single Backup call.
type BackupOptions struct {
	// Tag overrides the configured default snapshot tag.
	Tag string
	// Force passes the engine's force flag through.
	Force bool
	// IgnoreIntervalFloor bypasses the minimum-interval skip, for
	// explicit user-initiated backups.
	IgnoreIntervalFloor bool
}

// Result reports one backup or restore operation.
type Result struct {
	OperationID    string
	AssetPath      string
	RepositoryPath string
	// Version is the label reserved for this backup. Populated even on
	// failure; an unrecorded label is never reused ambiguously because
	// the next reservation recounts persisted records.
	Version string
	// Skipped marks a backup suppressed by the interval floor. No
	// engine process ran.
	Skipped    bool
	SkipReason string
	Engine     engine.Result
	Duration   time.Duration
}

// Success reports whether the operation left the asset in the desired
// state. A floor-skipped backup counts: the repository is current.
func (r Result) Success() bool {
	return r.Skipped || r.Engine.Success
}

// FailureMessage summarizes why the operation failed; empty on success.
func (r Result) FailureMessage() string {
	if r.Success() {
		return ""
	}
	if r.Engine.Err != "" {
		return r.Engine.Err
	}
	return "engine reported failure"
}

// History aggregates everything known about an asset's backups.
type History struct {
	AssetPath      string
	RepositoryPath string
	// HasBackup reports whether a repository exists for the asset.
	HasBackup      bool
	CurrentVersion string
	Versions       []versions.Record
	// Increments is the engine-native view, oldest first. Nil when the
	// engine listing failed; the version records above still stand.
	Increments []engine.Increment
}

// Orchestrator coordinates the engine, locator, tracker, and version
// store behind the caller-facing operation surface.
type Orchestrator struct {
	cfg     *config.Config
	eng     engine.Engine
	locator *repopath.Locator
	tracker *integrity.Tracker
	store   *versions.Store
	logger  *slog.Logger

	locks *lockRegistry
	now   func() time.Time

	availOnce sync.Once
	available bool
}

// Option adjusts orchestrator construction.
type Option func(*Orchestrator)

// WithEngine substitutes the engine adapter. Tests use it to script
// engine behaviour without spawning processes.
func WithEngine(eng engine.Engine) Option {
	return func(o *Orchestrator) { o.eng = eng }
}

// WithClock substitutes the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New wires an orchestrator from configuration. The store stays owned
// by the caller; Close it after the orchestrator is done.
func New(cfg *config.Config, store *versions.Store, run engine.Runner, logger *slog.Logger, opts ...Option) (*Orchestrator, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("orchestrator requires config and version store")
	}
	logger = logging.OrNop(logger)

	mode, err := repopath.ParseMode(cfg.Storage.Mode)
	if err != nil {
		return nil, err
	}
	locator, err := repopath.New(mode, cfg.Storage.GlobalRoot, cfg.Storage.VaultRoot)
	if err != nil {
		return nil, err
	}

	orch := &Orchestrator{
		cfg:     cfg,
		locator: locator,
		tracker: integrity.New(locator, logger),
		store:   store,
		logger:  logger,
		locks:   newLockRegistry(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(orch)
	}
	if orch.eng == nil {
		eng, err := engine.New(cfg, run, logger)
		if err != nil {
			return nil, err
		}
		orch.eng = eng
	}
	return orch, nil
}

// Available reports whether the configured engine binary responds. The
// probe runs once per orchestrator lifetime.
func (o *Orchestrator) Available(ctx context.Context) bool {
	o.availOnce.Do(func() {
		o.available = o.eng.Available(ctx)
	})
	return o.available
}

// Locator exposes repository path resolution for read-only callers.
func (o *Orchestrator) Locator() *repopath.Locator {
	return o.locator
}

// Backup records one new version of the asset. Engine failures come
// back inside the Result; the returned error covers configuration and
// persistence problems only.
func (o *Orchestrator) Backup(ctx context.Context, assetPath string, opts BackupOptions) (Result, error) {
	asset, repo, err := o.resolve(assetPath)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		OperationID:    uuid.NewString(),
		AssetPath:      asset,
		RepositoryPath: repo,
	}
	log := o.logger.With(
		slog.String("operation", res.OperationID),
		slog.String("asset", asset))

	unlock, err := o.lockRepository(ctx, repo)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	started := o.now()
	defer func() { res.Duration = o.now().Sub(started) }()

	info, statErr := os.Stat(asset)
	switch {
	case statErr != nil:
		res.Engine = engine.Result{Err: fmt.Sprintf("source file not found: %s", asset)}
		return res, nil
	case info.IsDir():
		res.Engine = engine.Result{Err: fmt.Sprintf("source %s is a directory, not a file", asset)}
		return res, nil
	}

	if !o.Available(ctx) {
		res.Engine = engine.Result{Err: fmt.Sprintf("engine binary %q unavailable", o.cfg.EngineBinary())}
		return res, nil
	}

	if !opts.IgnoreIntervalFloor {
		if reason, skip := o.withinIntervalFloor(ctx, asset); skip {
			res.Skipped = true
			res.SkipReason = reason
			log.Info("backup skipped", slog.String("reason", reason))
			return res, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(repo), 0o755); err != nil {
		return res, fmt.Errorf("ensure repository parent: %w", err)
	}
	if failed := preflight.Failed(preflight.RunBackupChecks(o.cfg, filepath.Dir(repo))); len(failed) > 0 {
		res.Engine = engine.Result{Err: preflightFailure(failed)}
		return res, nil
	}

	version, err := o.store.NextVersion(ctx, asset, repo)
	if err != nil {
		return res, fmt.Errorf("reserve version: %w", err)
	}
	res.Version = version

	res.Engine = o.eng.Backup(ctx, asset, repo, engine.BackupOptions{
		Compress:        o.cfg.Backup.Compress && info.Size() >= o.cfg.Backup.CompressionMinBytes,
		IncludePatterns: o.cfg.Backup.IncludePatterns,
		ExcludePatterns: o.cfg.Backup.ExcludePatterns,
		Tag:             o.tagFor(opts, version),
		Force:           opts.Force,
		Adjacent:        o.locator.Mode() == repopath.ModeAdjacent,
	})
	if !res.Engine.Success {
		log.Error("backup failed",
			slog.Int("exit_code", res.Engine.ExitCode),
			slog.String("error", res.Engine.Err))
		return res, nil
	}

	if _, err := o.store.RecordBackup(ctx, versions.Record{
		AssetPath:       asset,
		RepositoryPath:  repo,
		Version:         version,
		IncrementID:     res.Engine.SnapshotID,
		Timestamp:       o.now().UTC(),
		SourceSizeBytes: info.Size(),
	}); err != nil {
		return res, fmt.Errorf("record version %s: %w", version, err)
	}

	log.Info("backup complete",
		slog.String("version", version),
		slog.Bool("warning_recovered", res.Engine.WarningRecovered),
		slog.Int64("source_bytes", info.Size()))
	return res, nil
}

// Restore materializes an increment of the asset at its own path.
// Selector is a 3-digit version label, an engine-native increment ID,
// or SelectorLatest (the default when empty). The engine restores into
// a staging directory beside the asset; only a size- and hash-verified
// copy replaces the asset itself.
func (o *Orchestrator) Restore(ctx context.Context, assetPath, selector string) (Result, error) {
	asset, repo, err := o.resolve(assetPath)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		OperationID:    uuid.NewString(),
		AssetPath:      asset,
		RepositoryPath: repo,
	}

	unlock, err := o.lockRepository(ctx, repo)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	started := o.now()
	defer func() { res.Duration = o.now().Sub(started) }()

	if !fileutil.DirExists(repo) {
		res.Engine = engine.Result{Err: fmt.Sprintf("no repository for %s", asset)}
		return res, nil
	}
	if !o.Available(ctx) {
		res.Engine = engine.Result{Err: fmt.Sprintf("engine binary %q unavailable", o.cfg.EngineBinary())}
		return res, nil
	}

	selector, selErr := o.resolveSelector(ctx, asset, repo, selector)
	if selErr != nil {
		res.Engine = engine.Result{Err: selErr.Error()}
		return res, nil
	}

	if err := os.MkdirAll(filepath.Dir(asset), 0o755); err != nil {
		return res, fmt.Errorf("ensure asset directory: %w", err)
	}
	staging, err := os.MkdirTemp(filepath.Dir(asset), ".keepsake-restore-")
	if err != nil {
		return res, fmt.Errorf("create restore staging: %w", err)
	}
	defer os.RemoveAll(staging)
	staged := filepath.Join(staging, filepath.Base(asset))

	res.Engine = o.eng.Restore(ctx, repo, selector, asset, staged)
	if !res.Engine.Success {
		return res, nil
	}
	// The engine wrote into staging; only a byte-verified copy may
	// replace the asset.
	if copyErr := fileutil.CopyFileVerified(staged, asset); copyErr != nil {
		res.Engine.Success = false
		res.Engine.Err = fmt.Sprintf("verify restored file: %v", copyErr)
		return res, nil
	}
	o.logger.Info("restore complete",
		slog.String("operation", res.OperationID),
		slog.String("asset", asset),
		slog.String("selector", selector))
	return res, nil
}

// History reports the asset's versions and engine increments. An asset
// without a repository yields HasBackup false and the "000" sentinel,
// never an error.
func (o *Orchestrator) History(ctx context.Context, assetPath string) (History, error) {
	asset, repo, err := o.resolve(assetPath)
	if err != nil {
		return History{}, err
	}

	hist := History{AssetPath: asset, RepositoryPath: repo}
	hist.CurrentVersion, err = o.store.CurrentVersion(ctx, asset, repo)
	if err != nil {
		return History{}, err
	}
	hist.Versions, err = o.store.History(ctx, asset, repo)
	if err != nil {
		return History{}, err
	}

	if !fileutil.DirExists(repo) {
		return hist, nil
	}
	hist.HasBackup = true
	increments, listErr := o.eng.ListIncrements(ctx, repo)
	if listErr != nil {
		// Version records answer most questions; the engine view is
		// best effort.
		o.logger.Warn("increment listing failed",
			slog.String("asset", asset), logging.Error(listErr))
	} else {
		hist.Increments = increments
	}
	return hist, nil
}

// OnRename reacts to an asset rename or move: the repository follows
// the asset (adjacent mode), the rename ledger grows, and version
// records are rebound to the new identity. A failed physical move is
// reported after the ledger and records are updated, so provenance
// survives the failure.
func (o *Orchestrator) OnRename(ctx context.Context, oldPath, newPath string) error {
	oldAsset, oldRepo, err := o.resolve(oldPath)
	if err != nil {
		return err
	}
	newAsset, newRepo, err := o.resolve(newPath)
	if err != nil {
		return err
	}

	unlock, err := o.lockRepositories(ctx, oldRepo, newRepo)
	if err != nil {
		return err
	}
	defer unlock()

	moveErr := o.tracker.OnRename(oldAsset, newAsset)
	rebindErr := o.store.Rebind(ctx, oldAsset, newAsset, oldRepo, newRepo)
	return errors.Join(moveErr, rebindErr)
}

// HistoricalPaths reconstructs the asset's rename chain, oldest first.
func (o *Orchestrator) HistoricalPaths(assetPath string) ([]string, error) {
	asset, err := config.ExpandPath(assetPath)
	if err != nil {
		return nil, err
	}
	return o.tracker.HistoricalPaths(asset)
}

// versionLabelPattern matches the 3-digit labels users see in history
// output.
var versionLabelPattern = regexp.MustCompile(`^\d{3}$`)

// resolveSelector maps the caller's selector to an engine-native one.
// Empty means latest; a 3-digit version label is looked up in the
// store and translated to the recorded increment ID, or to the record
// timestamp when the engine (diff) addresses increments by time.
func (o *Orchestrator) resolveSelector(ctx context.Context, asset, repo, selector string) (string, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return SelectorLatest, nil
	}
	if !versionLabelPattern.MatchString(selector) {
		return selector, nil
	}
	records, err := o.store.History(ctx, asset, repo)
	if err != nil {
		return "", fmt.Errorf("look up version %s: %w", selector, err)
	}
	for _, rec := range records {
		if rec.Version != selector {
			continue
		}
		if rec.IncrementID != "" {
			return rec.IncrementID, nil
		}
		// Recording happens right after the increment lands, so an
		// at-or-before time lookup selects exactly this increment.
		return rec.Timestamp.UTC().Format(time.RFC3339), nil
	}
	return "", fmt.Errorf("no recorded version %s for %s", selector, asset)
}

func (o *Orchestrator) resolve(assetPath string) (asset, repo string, err error) {
	asset, err = config.ExpandPath(assetPath)
	if err != nil {
		return "", "", err
	}
	repo, err = o.locator.Resolve(asset)
	if err != nil {
		return "", "", err
	}
	return asset, repo, nil
}

func (o *Orchestrator) tagFor(opts BackupOptions, version string) string {
	if opts.Tag != "" {
		return opts.Tag
	}
	if o.cfg.Backup.DefaultTag != "" {
		return o.cfg.Backup.DefaultTag
	}
	return "keepsake-" + version
}

func (o *Orchestrator) withinIntervalFloor(ctx context.Context, asset string) (string, bool) {
	floor := time.Duration(o.cfg.Backup.IntervalFloorSeconds) * time.Second
	if floor <= 0 {
		return "", false
	}
	last, ok, err := o.store.LastBackupTime(ctx, asset)
	if err != nil {
		o.logger.Warn("last backup time lookup failed",
			slog.String("asset", asset), logging.Error(err))
		return "", false
	}
	if !ok {
		return "", false
	}
	elapsed := o.now().UTC().Sub(last)
	if elapsed >= floor {
		return "", false
	}
	return fmt.Sprintf("last backup %s ago, floor is %s", elapsed.Round(time.Second), floor), true
}

// lockRepository serializes against in-process callers via the keyed
// registry and against other processes via a file lock in the data
// directory. The returned function releases both.
func (o *Orchestrator) lockRepository(ctx context.Context, repoPath string) (func(), error) {
	entry := o.locks.acquire(repoPath)

	lockDir := filepath.Join(o.cfg.Paths.DataDir, "locks")
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		o.locks.release(repoPath, entry)
		return nil, fmt.Errorf("ensure lock directory: %w", err)
	}
	fl := flock.New(filepath.Join(lockDir, lockFileName(repoPath)))
	ok, err := fl.TryLockContext(ctx, lockRetryInterval)
	if err != nil || !ok {
		o.locks.release(repoPath, entry)
		if err == nil {
			err = errors.New("not acquired")
		}
		return nil, fmt.Errorf("acquire repository lock: %w", err)
	}

	return func() {
		if unlockErr := fl.Unlock(); unlockErr != nil {
			o.logger.Warn("repository lock not released", logging.Error(unlockErr))
		}
		o.locks.release(repoPath, entry)
	}, nil
}

// lockRepositories locks several repository keys in sorted order so
// concurrent multi-key operations cannot deadlock each other.
func (o *Orchestrator) lockRepositories(ctx context.Context, repoPaths ...string) (func(), error) {
	unique := make([]string, 0, len(repoPaths))
	seen := map[string]struct{}{}
	for _, repo := range repoPaths {
		if _, dup := seen[repo]; dup {
			continue
		}
		seen[repo] = struct{}{}
		unique = append(unique, repo)
	}
	sort.Strings(unique)

	unlocks := make([]func(), 0, len(unique))
	releaseAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, repo := range unique {
		unlock, err := o.lockRepository(ctx, repo)
		if err != nil {
			releaseAll()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return releaseAll, nil
}

func preflightFailure(failed []preflight.Result) string {
	parts := make([]string, 0, len(failed))
	for _, result := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", result.Name, result.Detail))
	}
	return "preflight failed: " + strings.Join(parts, "; ")
}
