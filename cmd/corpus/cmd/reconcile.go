package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newReconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Detect and remove orphaned index records",
		Long: `Check every derived-index record against the source store and
remove records whose document no longer exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd.Context(), cmd)
		},
	}
	return cmd
}

func runReconcile(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()

	result, err := a.coordinator.Reconcile(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "valid records:   %d\n", result.Valid)
	fmt.Fprintf(out, "orphans removed: %d\n", len(result.OrphanedIDs))
	for _, id := range result.OrphanedIDs {
		fmt.Fprintf(out, "  - %s\n", id)
	}
	return nil
}
