package pipeline

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// IndexCmd creates the index command.
func IndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild the local vector index from the database",
		Long: `Rebuilds the local vector index from the embedded chunks stored in
the database and writes it to the configured snapshot paths. The
database is the authoritative copy; use sync to rebuild from the remote
store instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context())
		},
	}

	return cmd
}

func runIndex(ctx context.Context) error {
	d, err := setup(ctx, depsOptions{needDB: true})
	if err != nil {
		return err
	}
	defer d.Close()

	report, err := d.syncService().RebuildFromStore(ctx, d.chunks)
	if err != nil {
		return fmt.Errorf("index rebuild failed: %w", err)
	}

	printReport(report.Retrieved, report.Indexed, report.SkippedEmpty)
	fmt.Printf("Index written to %s\n", d.cfg.IndexPath)

	return nil
}

func printReport(retrieved, indexed, skipped int) {
	fmt.Printf("Retrieved: %d\n", retrieved)
	fmt.Printf("Indexed: %d\n", indexed)
	if skipped > 0 {
		fmt.Printf("Skipped (bad embedding): %d\n", skipped)
	}
}
