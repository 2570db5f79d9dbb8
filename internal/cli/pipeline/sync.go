package pipeline

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// SyncCmd creates the sync command.
func SyncCmd() *cobra.Command {
	var fromFile string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Rebuild the local vector index from the remote store",
		Long: `Pulls every vector from the remote store and rebuilds the local
index from them, resolving chunk metadata from the database where
available.

With --from-file, rebuilds from an exported chunks JSONL file instead
(one embedded chunk per line); no remote store or database is needed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), fromFile)
		},
	}

	cmd.Flags().StringVar(&fromFile, "from-file", "", "Rebuild from a chunks JSONL file")

	return cmd
}

func runSync(ctx context.Context, fromFile string) error {
	if fromFile != "" {
		d, err := setup(ctx, depsOptions{})
		if err != nil {
			return err
		}
		defer d.Close()

		report, err := d.syncService().RebuildFromChunksFile(fromFile)
		if err != nil {
			return fmt.Errorf("sync from file failed: %w", err)
		}

		printReport(report.Retrieved, report.Indexed, report.SkippedEmpty)
		fmt.Printf("Index written to %s\n", d.cfg.IndexPath)
		return nil
	}

	d, err := setup(ctx, depsOptions{needDB: true, needPinecone: true})
	if err != nil {
		return err
	}
	defer d.Close()

	report, err := d.syncService().RebuildFromRemote(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Printf("Remote total: %d\n", report.RemoteTotal)
	printReport(report.Retrieved, report.Indexed, report.SkippedEmpty)
	fmt.Printf("Index written to %s\n", d.cfg.IndexPath)

	return nil
}
