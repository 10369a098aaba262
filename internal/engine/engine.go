package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"keepsake/internal/config"
	"keepsake/internal/runner"
	"keepsake/internal/stats"
)

// Kind names an engine family.
type Kind string

const (
	KindDiff     Kind = "diff"
	KindSnapshot Kind = "snapshot"
)

// Increment is one unit of engine-native history: a timestamped diff
// marker or a content snapshot. Engine-owned and immutable; keepsake
// only enumerates them.
type Increment struct {
	// ID is the engine-native selector usable in a restore call.
	ID   string
	Time time.Time
	// Tag carries the snapshot tag when the engine supports one.
	Tag string
}

// BackupOptions tunes a single backup invocation.
type BackupOptions struct {
	Compress bool
	// IncludePatterns and ExcludePatterns are extra globs for the diff
	// engine; the snapshot engine ignores them.
	IncludePatterns []string
	ExcludePatterns []string
	// Tag is attached to the snapshot (snapshot engine only).
	Tag string
	// Force passes the engine's force flag.
	Force bool
	// Adjacent marks that the repository sits beside the source file.
	// The diff engine needs force in that layout because source and
	// destination share a parent on first run.
	Adjacent bool
}

// Result reports the outcome of one engine operation.
type Result struct {
	Success bool
	// WarningRecovered marks a diff-engine warning exit that was
	// reclassified as success after the data marker check. Callers
	// treat it as Success; the raw exit code stays in logs.
	WarningRecovered bool
	ExitCode         int
	// SnapshotID holds the new snapshot identifier (snapshot engine).
	SnapshotID string
	Stats      stats.Statistics
	Stdout     string
	Stderr     string
	// Err is a short failure description; empty on success.
	Err string
	// CommandLine is the rendered invocation, for logs.
	CommandLine string
}

// Failed reports whether the operation ended in a hard failure.
func (r Result) Failed() bool {
	return !r.Success
}

// Runner executes engine processes. *runner.Runner satisfies it; tests
// substitute scripted fakes.
type Runner interface {
	Run(ctx context.Context, spec runner.Spec) runner.Result
}

// Engine is the uniform contract over both engine families.
type Engine interface {
	Kind() Kind
	// Backup records one increment of sourcePath into repoPath,
	// creating the repository lazily when needed.
	Backup(ctx context.Context, sourcePath, repoPath string, opts BackupOptions) Result
	// Restore materializes the increment of assetPath chosen by
	// selector (an engine-native ID or the literal "latest") at
	// targetPath. targetPath is usually a staging location; replacing
	// the asset itself is the caller's job.
	Restore(ctx context.Context, repoPath, selector, assetPath, targetPath string) Result
	// ListIncrements enumerates the repository's history, oldest first.
	ListIncrements(ctx context.Context, repoPath string) ([]Increment, error)
	// Available probes the engine binary and checks it identifies
	// itself in the version output.
	Available(ctx context.Context) bool
}

// New selects the adapter for the configured engine kind.
func New(cfg *config.Config, run Runner, logger *slog.Logger) (Engine, error) {
	if run == nil {
		return nil, errors.New("engine runner required")
	}
	timeout := time.Duration(cfg.Engine.TimeoutSeconds) * time.Second
	switch Kind(cfg.Engine.Kind) {
	case KindDiff:
		return NewDiff(cfg.Engine.DiffBinary, timeout, run, logger), nil
	case KindSnapshot:
		return NewSnapshot(cfg.Engine.SnapshotBinary, timeout, run, logger), nil
	default:
		return nil, fmt.Errorf("unknown engine kind %q", cfg.Engine.Kind)
	}
}
