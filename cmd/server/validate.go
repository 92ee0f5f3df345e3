package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/animgraph/internal/config"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scene.yaml>",
		Short: "Check a scene file and build its graph without serving it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := config.NewLoader(args[0])
			if err != nil {
				return err
			}
			cfg := loader.Config()
			if err := config.Validate(cfg); err != nil {
				return err
			}
			// A dry build catches node-level problems (ranges, expressions)
			// that the schema checks do not look at.
			_, m, err := buildScene(cfg, slog.Default())
			if err != nil {
				return err
			}
			if err := m.Evaluate().Err(); err != nil {
				return fmt.Errorf("initial evaluation: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d nodes, %d views, %d bindings)\n",
				args[0], m.NodeCount(), len(cfg.Views), len(cfg.Bindings))
			return nil
		},
	}
}
