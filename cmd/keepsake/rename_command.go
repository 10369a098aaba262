package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"keepsake/internal/config"
	"keepsake/internal/orchestrator"
)

func newRenameCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old-path> <new-path>",
		Short: "Tell keepsake an asset was renamed or moved",
		Long: "Tell keepsake an asset was renamed or moved. The repository follows\n" +
			"the asset in adjacent mode, the rename is recorded in the ledger, and\n" +
			"version history stays queryable under the new path. The asset file\n" +
			"itself is never touched; rename it yourself first.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withOrchestrator(func(_ *config.Config, orch *orchestrator.Orchestrator) error {
				if err := orch.OnRename(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s: history follows the asset\n",
					filepath.Base(args[0]), filepath.Base(args[1]))
				return nil
			})
		},
	}
}
