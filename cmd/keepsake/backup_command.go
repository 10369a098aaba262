package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"keepsake/internal/config"
	"keepsake/internal/orchestrator"
)

func newBackupCommand(ctx *commandContext) *cobra.Command {
	var tag string
	var force bool
	var now bool

	cmd := &cobra.Command{
		Use:   "backup <file> [file...]",
		Short: "Back up one or more asset files",
		Long: "Back up one or more asset files. Each file gets its own repository\n" +
			"and a new 3-digit version label per successful backup.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withOrchestrator(func(_ *config.Config, orch *orchestrator.Orchestrator) error {
				out := cmd.OutOrStdout()
				failures := 0
				for _, arg := range args {
					res, err := orch.Backup(cmd.Context(), arg, orchestrator.BackupOptions{
						Tag:                 tag,
						Force:               force,
						IgnoreIntervalFloor: now,
					})
					if err != nil {
						return err
					}
					printBackupResult(out, res)
					if !res.Success() {
						failures++
					}
				}
				if failures > 0 {
					return fmt.Errorf("%d of %d backups failed", failures, len(args))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "Tag attached to the snapshot (snapshot engine only)")
	cmd.Flags().BoolVar(&force, "force", false, "Pass the engine's force flag")
	cmd.Flags().BoolVar(&now, "now", false, "Back up even if the minimum interval has not elapsed")
	return cmd
}

func printBackupResult(out io.Writer, res orchestrator.Result) {
	name := filepath.Base(res.AssetPath)
	switch {
	case res.Skipped:
		fmt.Fprintf(out, "%s: skipped (%s)\n", name, res.SkipReason)
	case res.Success():
		fmt.Fprintf(out, "%s: version %s recorded", name, res.Version)
		if s := res.Engine.Stats; s.IncrementSizeBytes > 0 {
			fmt.Fprintf(out, " (%s written", humanize.IBytes(uint64(s.IncrementSizeBytes)))
			if s.SpaceSavingsPercent != nil {
				fmt.Fprintf(out, ", %.1f%% saved", *s.SpaceSavingsPercent)
			}
			fmt.Fprint(out, ")")
		}
		fmt.Fprintln(out)
		if res.Engine.WarningRecovered {
			fmt.Fprintf(out, "%s: engine reported warnings; the increment was still recorded\n", name)
		}
	default:
		fmt.Fprintf(out, "%s: backup failed: %s\n", name, res.FailureMessage())
	}
}
