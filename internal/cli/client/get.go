package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// Paper represents a paper from the API.
type Paper struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Authors       string   `json:"authors"`
	Abstract      string   `json:"abstract"`
	Categories    []string `json:"categories"`
	PublishedDate string   `json:"published_date,omitempty"`
	PDFURL        string   `json:"pdf_url,omitempty"`
	Version       string   `json:"version,omitempty"`
	HasFullText   bool     `json:"has_full_text"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at"`
}

// GetCmd creates the get command.
func GetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "get <paper_id>",
		Short:   "Get a paper by arXiv ID",
		Long:    "Retrieves a paper by its arXiv identifier and displays the full record.",
		Aliases: []string{"view"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runGet(cmd, args[0], outputJSON)
		},
	}

	return cmd
}

func runGet(cmd *cobra.Command, paperID string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get(fmt.Sprintf("/papers/%s", paperID))
	if err != nil {
		return fmt.Errorf("failed to get paper: %w", err)
	}

	var paper Paper
	if err := json.Unmarshal(resp.Data, &paper); err != nil {
		return fmt.Errorf("failed to parse paper: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(paper, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Title: %s\n", paper.Title)
		if paper.Authors != "" {
			fmt.Printf("Authors: %s\n", paper.Authors)
		}
		if len(paper.Categories) > 0 {
			fmt.Printf("Categories: %s\n", strings.Join(paper.Categories, ", "))
		}
		if paper.PublishedDate != "" {
			fmt.Printf("Published: %s\n", paper.PublishedDate)
		}
		if paper.PDFURL != "" {
			fmt.Printf("PDF: %s\n", paper.PDFURL)
		}
		fmt.Printf("Full text: %v\n", paper.HasFullText)
		fmt.Printf("Created: %s\n", paper.CreatedAt)
		fmt.Printf("Updated: %s\n", paper.UpdatedAt)
		fmt.Println()
		fmt.Println("--- Abstract ---")
		fmt.Println(paper.Abstract)
	}

	return nil
}
