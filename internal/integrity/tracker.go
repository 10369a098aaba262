package integrity

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"keepsake/internal/fileutil"
	"keepsake/internal/logging"
	"keepsake/internal/repopath"
)

// archiveTimeFormat suffixes archived repositories. Second resolution
// plus a counter fallback keeps archive names collision-free.
const archiveTimeFormat = "20060102-150405"

// Tracker relocates repositories when tracked assets are renamed and
// answers historical-path queries from the ledger.
type Tracker struct {
	locator *repopath.Locator
	logger  *slog.Logger
	now     func() time.Time
}

// New constructs a tracker for the given storage policy.
func New(locator *repopath.Locator, logger *slog.Logger) *Tracker {
	return &Tracker{locator: locator, logger: logging.OrNop(logger), now: time.Now}
}

// OnRename reacts to an asset rename or move. In global mode the
// engine already addresses history by logical path and nothing needs
// to move. In adjacent mode the repository directory follows the
// asset; a repository already occupying the destination is archived
// aside first, never overwritten or deleted.
//
// The ledger entry is recorded on every branch, including a failed
// physical move, so the historical-path chain survives even when the
// repository ends up in an ambiguous location.
func (t *Tracker) OnRename(oldPath, newPath string) error {
	if t.locator.Mode() == repopath.ModeGlobal {
		return nil
	}

	oldRepo, err := t.locator.Resolve(oldPath)
	if err != nil {
		return fmt.Errorf("resolve old repository: %w", err)
	}
	newRepo, err := t.locator.Resolve(newPath)
	if err != nil {
		return fmt.Errorf("resolve new repository: %w", err)
	}

	entry := Entry{OldPath: oldPath, NewPath: newPath, Timestamp: t.now().UTC()}

	if oldRepo == newRepo {
		// Same resolution, so history stays put. Recording the pair
		// once is enough; repeated identical calls must not grow the
		// ledger.
		entries, loadErr := loadLedger(newRepo)
		if loadErr == nil {
			if last := len(entries) - 1; last >= 0 &&
				entries[last].OldPath == oldPath && entries[last].NewPath == newPath {
				return nil
			}
		}
		return appendEntry(newRepo, entry)
	}
	if !fileutil.DirExists(oldRepo) {
		// Nothing to move; remember the rename anyway.
		return appendEntry(newRepo, entry)
	}

	moveErr := t.relocate(oldRepo, newRepo)
	if ledgerErr := appendEntry(t.ledgerHome(oldRepo, newRepo, moveErr), entry); ledgerErr != nil {
		t.logger.Warn("rename ledger not recorded", logging.Error(ledgerErr))
	}
	return moveErr
}

// relocate runs the three-step protocol: ensure destination parent,
// archive an occupying repository, move, verify.
func (t *Tracker) relocate(oldRepo, newRepo string) error {
	if err := os.MkdirAll(filepath.Dir(newRepo), 0o755); err != nil {
		return fmt.Errorf("ensure destination parent: %w", err)
	}

	if fileutil.DirExists(newRepo) {
		archived, err := t.archive(newRepo)
		if err != nil {
			return fmt.Errorf("archive occupied destination: %w", err)
		}
		t.logger.Warn("destination repository archived",
			slog.String("repository", newRepo),
			slog.String("archive", archived))
	}

	if err := fileutil.MoveDir(oldRepo, newRepo); err != nil {
		return fmt.Errorf("relocate repository: %w", err)
	}
	if !fileutil.DirExists(newRepo) {
		// Verification failed after the move was issued. No automatic
		// rollback; the caller is told and the ledger keeps the trace.
		return fmt.Errorf("repository missing at %s after relocation", newRepo)
	}
	t.logger.Info("repository relocated",
		slog.String("from", oldRepo),
		slog.String("to", newRepo))
	return nil
}

// archive renames a repository aside with a timestamp suffix, never
// overwriting a previous archive.
func (t *Tracker) archive(repoPath string) (string, error) {
	base := repoPath + ".archived-" + t.now().UTC().Format(archiveTimeFormat)
	candidate := base
	for i := 1; fileutil.DirExists(candidate); i++ {
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	if err := os.Rename(repoPath, candidate); err != nil {
		return "", err
	}
	return candidate, nil
}

// ledgerHome picks where to record the entry: the destination when the
// move landed there, otherwise wherever the repository still is.
func (t *Tracker) ledgerHome(oldRepo, newRepo string, moveErr error) string {
	if moveErr == nil || fileutil.DirExists(newRepo) {
		return newRepo
	}
	if fileutil.DirExists(oldRepo) {
		return oldRepo
	}
	return newRepo
}

// HistoricalPaths reconstructs the asset's path chain, oldest first,
// ending with currentPath. The backward walk is capped at the ledger
// length or 100 hops, whichever is smaller, so corrupted data cannot
// loop it forever.
func (t *Tracker) HistoricalPaths(currentPath string) ([]string, error) {
	repo, err := t.locator.Resolve(currentPath)
	if err != nil {
		return nil, err
	}
	entries, err := loadLedger(repo)
	if err != nil {
		return nil, err
	}

	chain := []string{currentPath}
	seen := map[string]struct{}{currentPath: {}}
	cursor := currentPath

	maxHops := len(entries)
	if maxHops > maxLedgerEntries {
		maxHops = maxLedgerEntries
	}
	for hop := 0; hop < maxHops; hop++ {
		previous, ok := lookupOldPath(entries, cursor)
		if !ok {
			break
		}
		if _, dup := seen[previous]; dup {
			break
		}
		seen[previous] = struct{}{}
		chain = append([]string{previous}, chain...)
		cursor = previous
	}
	return chain, nil
}

// lookupOldPath finds the most recent entry whose NewPath matches.
func lookupOldPath(entries []Entry, newPath string) (string, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].NewPath == newPath {
			return entries[i].OldPath, true
		}
	}
	return "", false
}
