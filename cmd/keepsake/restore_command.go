package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"keepsake/internal/config"
	"keepsake/internal/orchestrator"
)

func newRestoreCommand(ctx *commandContext) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Restore an asset file from its repository",
		Long: "Restore an asset file from its repository. By default the latest\n" +
			"increment is restored; --at selects a 3-digit version label from\n" +
			"`keepsake history` or an engine-native increment ID.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withOrchestrator(func(_ *config.Config, orch *orchestrator.Orchestrator) error {
				res, err := orch.Restore(cmd.Context(), args[0], at)
				if err != nil {
					return err
				}
				name := filepath.Base(res.AssetPath)
				if !res.Success() {
					return fmt.Errorf("%s: restore failed: %s", name, res.FailureMessage())
				}
				selector := at
				if selector == "" {
					selector = orchestrator.SelectorLatest
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: restored (%s)\n", name, selector)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "Increment to restore (version label or engine-native ID; default latest)")
	return cmd
}
