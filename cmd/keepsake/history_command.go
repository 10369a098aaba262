package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"keepsake/internal/config"
	"keepsake/internal/orchestrator"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var showIncrements bool
	var showPaths bool

	cmd := &cobra.Command{
		Use:   "history <file>",
		Short: "Show an asset's version history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withOrchestrator(func(_ *config.Config, orch *orchestrator.Orchestrator) error {
				out := cmd.OutOrStdout()
				hist, err := orch.History(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				name := filepath.Base(hist.AssetPath)

				if !hist.HasBackup && len(hist.Versions) == 0 {
					fmt.Fprintf(out, "%s: no backups yet (version %s)\n", name, hist.CurrentVersion)
					return nil
				}

				fmt.Fprintf(out, "%s: current version %s, repository %s\n",
					name, hist.CurrentVersion, hist.RepositoryPath)

				rows := make([][]string, 0, len(hist.Versions))
				for _, rec := range hist.Versions {
					latest := ""
					if rec.IsLatest {
						latest = "*"
					}
					rows = append(rows, []string{
						rec.Version,
						rec.Timestamp.Local().Format(time.DateTime),
						humanize.Time(rec.Timestamp),
						humanize.IBytes(uint64(rec.SourceSizeBytes)),
						latest,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Version", "Created", "Age", "Source", "Latest"}, rows, 3))

				if showIncrements {
					printIncrements(cmd, hist)
				}
				if showPaths {
					if err := printHistoricalPaths(cmd, orch, hist.AssetPath); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showIncrements, "increments", false, "List the engine's native increments")
	cmd.Flags().BoolVar(&showPaths, "paths", false, "Show the asset's rename chain, oldest first")
	return cmd
}

func printIncrements(cmd *cobra.Command, hist orchestrator.History) {
	out := cmd.OutOrStdout()
	if len(hist.Increments) == 0 {
		fmt.Fprintln(out, "No engine increments reported.")
		return
	}
	rows := make([][]string, 0, len(hist.Increments))
	for _, inc := range hist.Increments {
		rows = append(rows, []string{inc.ID, inc.Time.Local().Format(time.DateTime), inc.Tag})
	}
	fmt.Fprintln(out, renderTable([]string{"Increment", "Time", "Tag"}, rows))
}

func printHistoricalPaths(cmd *cobra.Command, orch *orchestrator.Orchestrator, asset string) error {
	chain, err := orch.HistoricalPaths(asset)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Path history (oldest first):")
	for _, path := range chain {
		fmt.Fprintf(out, "  %s\n", path)
	}
	return nil
}
