package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// CorpusStatsResponse represents the corpus stats API response.
type CorpusStatsResponse struct {
	PaperCount        int `json:"paper_count"`
	ChunkCount        int `json:"chunk_count"`
	EmbeddedPapers    int `json:"embedded_papers"`
	ConversationCount int `json:"conversation_count"`
	PendingJobs       int `json:"pending_jobs"`
}

// StatsCmd creates the stats command.
func StatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show corpus statistics",
		Long:  "Shows paper, chunk, and conversation counts plus pending embedding jobs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runStats(cmd, outputJSON)
		},
	}

	return cmd
}

func runStats(cmd *cobra.Command, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/stats")
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	var stats CorpusStatsResponse
	if err := json.Unmarshal(resp.Data, &stats); err != nil {
		return fmt.Errorf("failed to parse stats: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Papers: %d\n", stats.PaperCount)
	fmt.Printf("Chunks: %d\n", stats.ChunkCount)
	fmt.Printf("Embedded papers: %d\n", stats.EmbeddedPapers)
	fmt.Printf("Conversations: %d\n", stats.ConversationCount)
	fmt.Printf("Pending embedding jobs: %d\n", stats.PendingJobs)

	return nil
}
