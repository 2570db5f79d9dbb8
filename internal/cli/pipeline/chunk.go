package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// ChunkCmd creates the chunk command.
func ChunkCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "chunk <paper_id>",
		Short: "Preview chunking for a paper",
		Long: `Splits a paper's text into chunks using the configured chunking
parameters and prints the result. Nothing is persisted; embedding stores
chunks as part of the embed step.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runChunk(cmd.Context(), args[0], out, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Write chunks as JSONL to a file instead of stdout")

	return cmd
}

func runChunk(ctx context.Context, paperID, out string, outputJSON bool) error {
	d, err := setup(ctx, depsOptions{needDB: true})
	if err != nil {
		return err
	}
	defer d.Close()

	paper, err := d.papers.GetByID(ctx, paperID)
	if err != nil {
		return fmt.Errorf("failed to get paper: %w", err)
	}

	chunks := d.chunker().ChunkPaper(paper)
	if len(chunks) == 0 {
		return fmt.Errorf("paper %s produced no chunks (empty source text?)", paperID)
	}

	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()

		enc := json.NewEncoder(f)
		for _, c := range chunks {
			if err := enc.Encode(c); err != nil {
				return fmt.Errorf("failed to write chunk: %w", err)
			}
		}
		fmt.Printf("Wrote %d chunks to %s\n", len(chunks), out)
		return nil
	}

	if outputJSON {
		output, _ := json.MarshalIndent(chunks, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Paper %s: %d chunks\n\n", paperID, len(chunks))
	for i, c := range chunks {
		fmt.Printf("%d. %s (%d tokens, chars %d-%d)\n", i+1, c.ChunkID, c.TokenCount, c.StartChar, c.EndChar)
		preview := c.Text
		if len(preview) > 120 {
			preview = preview[:117] + "..."
		}
		fmt.Printf("   %s\n", preview)
		if i < len(chunks)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}

	return nil
}
