package engine

import (
	"context"
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

// diffAPIVersion pins the engine's command-line protocol so a system
// upgrade of rdiff-backup cannot silently change argument semantics.
const diffAPIVersion = "201"

// diffDataDirName is the marker directory the engine creates inside a
// repository. Its presence is how a warning exit is told apart from a
// failed one.
const diffDataDirName = "rdiff-backup-data"

const sessionStatsPrefix = "session_statistics"

// incrementFilePattern matches the engine's increment marker filenames.
// The embedded timestamp uses "-" as both date and time separator
// (2023-10-09T22-00-12-04-00); consumers get it reformatted with ":"
// time-of-day separators and a signed UTC offset.
var incrementFilePattern = regexp.MustCompile(
	`increments\.(\d{4}-\d{2}-\d{2})T(\d{2})-(\d{2})-(\d{2})([+-])(\d{2})[-:](\d{2})`)

// Diff drives rdiff-backup. Its unit of operation is a directory tree,
// so single-file backup goes through the parent directory with an
// include pattern matching exactly the asset and an exclude for
// everything else.
type Diff struct {
	binary  string
	timeout time.Duration
	run     Runner
	logger  *slog.Logger
}

// NewDiff constructs the diff-engine adapter.
func NewDiff(binary string, timeout time.Duration, run Runner, logger *slog.Logger) *Diff {
	return &Diff{binary: binary, timeout: timeout, run: run, logger: logging.OrNop(logger)}
}

// Kind identifies the adapter.
func (d *Diff) Kind() Kind {
	return KindDiff
}

// Backup records one increment of sourcePath into repoPath.
func (d *Diff) Backup(ctx context.Context, sourcePath, repoPath string, opts BackupOptions) Result {
	args := []string{"--api-version", diffAPIVersion, "backup"}
	if !opts.Compress {
		args = append(args, "--no-compression")
	}
	// First-match-wins pattern list: caller extras, then the asset
	// itself, then exclude the rest of the parent directory.
	for _, pattern := range opts.IncludePatterns {
		args = append(args, "--include", pattern)
	}
	args = append(args, "--include", filepath.ToSlash(sourcePath))
	for _, pattern := range opts.ExcludePatterns {
		args = append(args, "--exclude", pattern)
	}
	args = append(args, "--exclude", "**")
	if opts.Force || opts.Adjacent {
		// Adjacent layout roots source and destination under the same
		// parent on first run, which the engine otherwise refuses.
		args = append(args, "--force")
	}
	args = append(args, filepath.Dir(sourcePath), repoPath)

	result := d.exec(ctx, args)
	if !result.Success && result.ExitCode == 1 && fileutil.DirExists(filepath.Join(repoPath, diffDataDirName)) {
		// Exit 1 is "completed with warnings". The increment landed if
		// the data marker exists, so the operation counts as a success;
		// only the logged exit code betrays the difference.
		result.Success = true
		result.WarningRecovered = true
		result.Err = ""
		d.logger.Warn("diff engine completed with warnings",
			slog.String("repository", repoPath),
			slog.String("stderr", tail(result.Stderr, 4)))
	}
	if result.Success {
		if raw, err := d.latestSessionStats(repoPath); err == nil {
			result.Stats = stats.Parse(stats.EngineDiff, raw)
		} else {
			d.logger.Warn("session statistics unavailable",
				slog.String("repository", repoPath), logging.Error(err))
		}
	}
	return result
}

// Restore materializes the selected increment of the mirrored asset at
// targetPath. Selector "latest" maps to the engine's "now".
func (d *Diff) Restore(ctx context.Context, repoPath, selector, assetPath, targetPath string) Result {
	at := strings.TrimSpace(selector)
	if at == "" || at == "latest" {
		at = "now"
	}
	mirrored := filepath.Join(repoPath, filepath.Base(assetPath))
	args := []string{
		"--api-version", diffAPIVersion,
		"restore", "--at", at, "--force",
		mirrored, targetPath,
	}
	return d.exec(ctx, args)
}

// ListIncrements enumerates increment markers, oldest first.
func (d *Diff) ListIncrements(ctx context.Context, repoPath string) ([]Increment, error) {
	args := []string{"--api-version", diffAPIVersion, "list", "increments", repoPath}
	res := d.exec(ctx, args)
	if !res.Success {
		return nil, fmt.Errorf("list increments: %s", res.failureMessage())
	}

	var increments []Increment
	for _, line := range strings.Split(res.Stdout, "\n") {
		match := incrementFilePattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		id := fmt.Sprintf("%sT%s:%s:%s%s%s:%s",
			match[1], match[2], match[3], match[4], match[5], match[6], match[7])
		ts, err := time.Parse(time.RFC3339, id)
		if err != nil {
			continue
		}
		increments = append(increments, Increment{ID: id, Time: ts})
	}
	sort.Slice(increments, func(i, j int) bool { return increments[i].Time.Before(increments[j].Time) })
	return increments, nil
}

// Available probes the binary and checks its self-identification.
func (d *Diff) Available(ctx context.Context) bool {
	res := d.run.Run(ctx, runner.Spec{Executable: d.binary, Args: []string{"--version"}, Timeout: d.timeout})
	return res.Success && strings.Contains(res.Stdout+res.Stderr, "rdiff-backup")
}

func (d *Diff) exec(ctx context.Context, args []string) Result {
	spec := runner.Spec{Executable: d.binary, Args: args, Timeout: d.timeout}
	d.logger.Debug("running diff engine", slog.String("command", spec.CommandLine()))
	run := d.run.Run(ctx, spec)
	result := Result{
		Success:     run.Success,
		ExitCode:    run.ExitCode,
		Stdout:      run.Stdout,
		Stderr:      run.Stderr,
		Err:         run.Err,
		CommandLine: spec.CommandLine(),
	}
	if !result.Success && result.Err == "" {
		result.Err = fmt.Sprintf("diff engine exited with code %d", result.ExitCode)
	}
	return result
}

// latestSessionStats returns the contents of the most recent session
// statistics artifact. Filenames embed a sortable timestamp, so the
// lexicographically last name is the newest session.
func (d *Diff) latestSessionStats(repoPath string) (string, error) {
	dataDir := filepath.Join(repoPath, diffDataDirName)
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return "", fmt.Errorf("read data directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), sessionStatsPrefix) {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no %s files in %s", sessionStatsPrefix, dataDir)
	}
	sort.Strings(names)
	data, err := os.ReadFile(filepath.Join(dataDir, names[len(names)-1]))
	if err != nil {
		return "", fmt.Errorf("read session statistics: %w", err)
	}
	return string(data), nil
}

// failureMessage condenses a failed result for error wrapping.
func (r Result) failureMessage() string {
	if r.Err != "" {
		return r.Err
	}
	if msg := tail(r.Stderr, 2); msg != "" {
		return msg
	}
	return fmt.Sprintf("exit code %d", r.ExitCode)
}

// tail returns the last n non-empty lines of text, joined.
func tail(text string, n int) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	var kept []string
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, strings.TrimSpace(line))
		}
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return strings.Join(kept, " | ")
}

var _ Engine = (*Diff)(nil)
