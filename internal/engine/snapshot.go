package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"keepsake/internal/fileutil"
	"keepsake/internal/logging"
	"keepsake/internal/runner"
	"keepsake/internal/stats"
)

// snapshotRepoDirName is the subdirectory inside a keepsake metadata
// directory that holds the engine's own config and object store.
const snapshotRepoDirName = "restic-repository"

// snapshotSavedPattern scrapes the new snapshot ID from the engine's
// backup confirmation line: "snapshot 9a8b7c6d saved".
var snapshotSavedPattern = regexp.MustCompile(`snapshot\s+([0-9a-f]+)\s+saved`)

// snapshotListLinePattern is the free-text fallback for increment
// listing when structured output is unavailable:
// "9a8b7c6d  2023-10-09 22:00:12  host  /vault/A.blend".
var snapshotListLinePattern = regexp.MustCompile(`^([0-9a-f]{8,})\s+(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})`)

// Snapshot drives restic. The repository is addressed through an
// environment variable and always runs with the passphrase disabled;
// repository confidentiality is left to filesystem permissions.
type Snapshot struct {
	binary  string
	timeout time.Duration
	run     Runner
	logger  *slog.Logger
}

// NewSnapshot constructs the snapshot-engine adapter.
func NewSnapshot(binary string, timeout time.Duration, run Runner, logger *slog.Logger) *Snapshot {
	return &Snapshot{binary: binary, timeout: timeout, run: run, logger: logging.OrNop(logger)}
}

// Kind identifies the adapter.
func (s *Snapshot) Kind() Kind {
	return KindSnapshot
}

// RepoDir returns the engine's object-store directory inside the
// keepsake metadata directory.
func (s *Snapshot) RepoDir(repoPath string) string {
	return filepath.Join(repoPath, snapshotRepoDirName)
}

// Backup snapshots sourcePath into repoPath, initializing the engine
// repository on first use.
func (s *Snapshot) Backup(ctx context.Context, sourcePath, repoPath string, opts BackupOptions) Result {
	repoDir := s.RepoDir(repoPath)
	if !fileutil.FileExists(filepath.Join(repoDir, "config")) {
		if res := s.exec(ctx, repoDir, []string{"init"}); !res.Success {
			// Initialization failures are hard failures, surfaced verbatim.
			res.Err = fmt.Sprintf("repository init failed: %s", res.failureMessage())
			return res
		}
	}

	args := []string{"backup", sourcePath}
	if tag := strings.TrimSpace(opts.Tag); tag != "" {
		args = append(args, "--tag", tag)
	}
	if !opts.Compress {
		args = append(args, "--compression", "off")
	}
	if opts.Force {
		args = append(args, "--force")
	}

	result := s.exec(ctx, repoDir, args)
	if result.Success {
		if match := snapshotSavedPattern.FindStringSubmatch(result.Stdout); match != nil {
			result.SnapshotID = match[1]
		} else {
			s.logger.Warn("snapshot id not found in engine output",
				slog.String("repository", repoPath))
		}
		result.Stats = stats.Parse(stats.EngineSnapshot, result.Stdout)
	}
	return result
}

// Restore materializes the selected snapshot of assetPath at
// targetPath.
func (s *Snapshot) Restore(ctx context.Context, repoPath, selector, assetPath, targetPath string) Result {
	sel := strings.TrimSpace(selector)
	if sel == "" {
		sel = "latest"
	}
	// Snapshots store absolute paths, so the engine nests the whole
	// stored path under its restore target. Restore into a scratch
	// root, then move the single file onto targetPath.
	scratch, err := os.MkdirTemp(filepath.Dir(targetPath), ".snapshot-restore-")
	if err != nil {
		return Result{Err: fmt.Sprintf("create restore scratch dir: %v", err)}
	}
	defer os.RemoveAll(scratch)

	args := []string{"restore", sel, "--target", scratch, "--include", assetPath}
	res := s.exec(ctx, s.RepoDir(repoPath), args)
	if !res.Success {
		return res
	}
	if err := os.Rename(filepath.Join(scratch, assetPath), targetPath); err != nil {
		res.Success = false
		res.Err = fmt.Sprintf("place restored file: %v", err)
	}
	return res
}

// snapshotRecord is the engine's structured snapshot listing entry.
type snapshotRecord struct {
	ID      string    `json:"id"`
	ShortID string    `json:"short_id"`
	Time    time.Time `json:"time"`
	Tags    []string  `json:"tags"`
}

// ListIncrements prefers structured output and falls back to scraping
// the text table when the engine predates --json.
func (s *Snapshot) ListIncrements(ctx context.Context, repoPath string) ([]Increment, error) {
	repoDir := s.RepoDir(repoPath)
	res := s.exec(ctx, repoDir, []string{"snapshots", "--json"})
	if !res.Success {
		return nil, fmt.Errorf("list snapshots: %s", res.failureMessage())
	}

	var records []snapshotRecord
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.Stdout)), &records); err == nil {
		increments := make([]Increment, 0, len(records))
		for _, rec := range records {
			id := rec.ShortID
			if id == "" {
				id = rec.ID
			}
			inc := Increment{ID: id, Time: rec.Time}
			if len(rec.Tags) > 0 {
				inc.Tag = rec.Tags[0]
			}
			increments = append(increments, inc)
		}
		sortIncrements(increments)
		return increments, nil
	}

	var increments []Increment
	for _, line := range strings.Split(res.Stdout, "\n") {
		match := snapshotListLinePattern.FindStringSubmatch(strings.TrimSpace(line))
		if match == nil {
			continue
		}
		ts, err := time.ParseInLocation("2006-01-02 15:04:05", match[2], time.Local)
		if err != nil {
			continue
		}
		increments = append(increments, Increment{ID: match[1], Time: ts})
	}
	sortIncrements(increments)
	return increments, nil
}

// Available probes the binary and checks its self-identification.
func (s *Snapshot) Available(ctx context.Context) bool {
	res := s.run.Run(ctx, runner.Spec{Executable: s.binary, Args: []string{"version"}, Timeout: s.timeout})
	return res.Success && strings.Contains(res.Stdout+res.Stderr, "restic")
}

func (s *Snapshot) exec(ctx context.Context, repoDir string, args []string) Result {
	// The repository location travels in the environment and every
	// invocation runs with the passphrase disabled.
	args = append(args, "--insecure-no-password")
	spec := runner.Spec{
		Executable: s.binary,
		Args:       args,
		Env:        []string{"RESTIC_REPOSITORY=" + repoDir},
		Timeout:    s.timeout,
	}
	s.logger.Debug("running snapshot engine",
		slog.String("command", spec.CommandLine()),
		slog.String("repository", repoDir))
	run := s.run.Run(ctx, spec)
	result := Result{
		Success:     run.Success,
		ExitCode:    run.ExitCode,
		Stdout:      run.Stdout,
		Stderr:      run.Stderr,
		Err:         run.Err,
		CommandLine: spec.CommandLine(),
	}
	if !result.Success && result.Err == "" {
		result.Err = fmt.Sprintf("snapshot engine exited with code %d", result.ExitCode)
	}
	return result
}

func sortIncrements(increments []Increment) {
	sort.Slice(increments, func(i, j int) bool { return increments[i].Time.Before(increments[j].Time) })
}

var _ Engine = (*Snapshot)(nil)
