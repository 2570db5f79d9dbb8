package pipeline

import (
	"context"
	"fmt"

	"github.com/helioscope-ai/helioscope/internal/jobs"
	"github.com/spf13/cobra"
)

// EmbedCmd creates the embed command.
func EmbedCmd() *cobra.Command {
	var (
		paperID string
		noSync  bool
	)

	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Embed papers and upsert vectors",
		Long: `Drains the pending embedding job queue: each job chunks its paper,
embeds the chunks, stores them, and upserts the vectors to the remote
store when one is configured.

With --paper, embeds a single paper directly, bypassing the queue.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmbed(cmd.Context(), paperID, noSync)
		},
	}

	cmd.Flags().StringVar(&paperID, "paper", "", "Embed a single paper by arXiv ID")
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "Skip the remote vector store upsert")

	return cmd
}

func runEmbed(ctx context.Context, paperID string, noSync bool) error {
	d, err := setup(ctx, depsOptions{needDB: true, needOpenAI: true, wantPinecone: !noSync})
	if err != nil {
		return err
	}
	defer d.Close()

	embedder := d.embeddingService()

	if paperID != "" {
		if err := embedder.EmbedPaper(ctx, paperID); err != nil {
			return fmt.Errorf("failed to embed paper %s: %w", paperID, err)
		}
		fmt.Printf("Embedded paper %s\n", paperID)
		return nil
	}

	processor := jobs.NewEmbeddingWorker(d.jobs, embedder)

	passes := 0
	for {
		pending, err := d.jobs.GetPending(ctx, 1)
		if err != nil {
			return fmt.Errorf("failed to check pending jobs: %w", err)
		}
		if len(pending) == 0 {
			break
		}
		if err := processor.ProcessJobs(ctx); err != nil {
			return err
		}
		passes++
	}

	if passes == 0 {
		fmt.Println("No pending embedding jobs.")
	} else {
		fmt.Printf("Queue drained in %d passes.\n", passes)
	}

	return nil
}
