package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// SearchRequest represents the search API request.
type SearchRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// SearchResult represents a search result.
type SearchResult struct {
	PaperID    string   `json:"paper_id"`
	ChunkID    string   `json:"chunk_id,omitempty"`
	Title      string   `json:"title"`
	Authors    string   `json:"authors,omitempty"`
	Snippet    string   `json:"snippet,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Score      float64  `json:"score"`
	Source     string   `json:"source"`
}

// SearchResponse represents the search API response.
type SearchResponse struct {
	Query   string         `json:"query"`
	Mode    string         `json:"mode"`
	Results []SearchResult `json:"results"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		mode  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the paper corpus",
		Long:  "Searches the corpus using lexical, vector, or combined retrieval.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSearch(cmd, args[0], mode, limit, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "combined", "Search mode (lexical, vector_local, vector_pinecone, combined)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results")

	return cmd
}

func runSearch(cmd *cobra.Command, query, mode string, limit int, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	req := SearchRequest{
		Query: query,
		Mode:  mode,
		Limit: limit,
	}

	resp, err := api.Post("/search", req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(resp.Data, &searchResp); err != nil {
		return fmt.Errorf("failed to parse search results: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(searchResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(searchResp.Results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results (%s):\n\n", len(searchResp.Results), searchResp.Mode)
	for i, result := range searchResp.Results {
		fmt.Printf("%d. %s (%.4f, %s)\n", i+1, result.Title, result.Score, result.Source)
		if result.Authors != "" {
			fmt.Printf("   Authors: %s\n", result.Authors)
		}
		if result.Snippet != "" {
			snippet := result.Snippet
			if len(snippet) > 160 {
				snippet = snippet[:157] + "..."
			}
			fmt.Printf("   %s\n", snippet)
		}
		fmt.Printf("   ID: %s\n", result.PaperID)
		if i < len(searchResp.Results)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}

	return nil
}
