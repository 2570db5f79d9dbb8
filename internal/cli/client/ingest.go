package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// IngestPaperRequest represents the ingest API request.
type IngestPaperRequest struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Authors         string   `json:"authors,omitempty"`
	Abstract        string   `json:"abstract,omitempty"`
	Categories      []string `json:"categories,omitempty"`
	PublishedDate   string   `json:"published_date,omitempty"`
	PDFURL          string   `json:"pdf_url,omitempty"`
	FullText        string   `json:"full_text,omitempty"`
	Version         string   `json:"version,omitempty"`
	ExtractFullText bool     `json:"extract_full_text,omitempty"`
}

// BatchResult represents a single result in a batch ingest.
type BatchResult struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Title  string `json:"title,omitempty"`
}

// BatchResponse represents the outcome of a batch ingest.
type BatchResponse struct {
	Results   []BatchResult `json:"results"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
}

// IngestCmd creates the ingest command.
func IngestCmd() *cobra.Command {
	var (
		file            string
		batch           bool
		extractFullText bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest papers from stdin or file",
		Long: `Ingest paper metadata from JSON input (stdin or file).

Examples:
  # Ingest a single paper from JSON on stdin
  echo '{"id":"2301.00001","title":"Dark Matter Halos","abstract":"..."}' | helioscope ingest

  # Ingest from a JSON file
  helioscope ingest --file paper.json

  # Batch ingest from JSONL (one paper per line)
  cat papers.jsonl | helioscope ingest --batch

  # Queue full-text extraction for each paper's PDF URL
  helioscope ingest --file paper.json --extract-full-text`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			if batch {
				return runBatchIngest(cmd, file, extractFullText, outputJSON)
			}
			return runIngest(cmd, file, extractFullText, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Input file (JSON, or JSONL with --batch)")
	cmd.Flags().BoolVar(&batch, "batch", false, "Batch mode: read one JSON paper per line")
	cmd.Flags().BoolVar(&extractFullText, "extract-full-text", false, "Fetch full text from each paper's source URL")

	return cmd
}

func runIngest(cmd *cobra.Command, file string, extractFullText, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	input, err := readInput(file)
	if err != nil {
		return err
	}
	if len(input) == 0 {
		return fmt.Errorf("no input provided")
	}

	var req IngestPaperRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return fmt.Errorf("failed to parse JSON input: %w", err)
	}

	if req.ID == "" {
		return fmt.Errorf("id is required")
	}
	if req.Title == "" {
		return fmt.Errorf("title is required")
	}
	if extractFullText {
		req.ExtractFullText = true
	}

	resp, err := api.Post("/papers", req)
	if err != nil {
		return fmt.Errorf("failed to ingest paper: %w", err)
	}

	var paper Paper
	if err := json.Unmarshal(resp.Data, &paper); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(paper, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Ingested paper: %s\n", paper.ID)
		fmt.Printf("Title: %s\n", paper.Title)
	}

	return nil
}

func runBatchIngest(cmd *cobra.Command, file string, extractFullText, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	var reader io.Reader
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("failed to open file: %w", err)
		}
		defer f.Close()
		reader = f
	} else {
		reader = os.Stdin
	}

	scanner := bufio.NewScanner(reader)
	const maxScanTokenSize = 5 * 1024 * 1024
	buf := make([]byte, maxScanTokenSize)
	scanner.Buffer(buf, maxScanTokenSize)

	response := BatchResponse{
		Results: make([]BatchResult, 0),
	}

	lineNum := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		lineNum++
		response.Total++

		var item IngestPaperRequest
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			response.Results = append(response.Results, BatchResult{
				Status: "failed",
				Error:  fmt.Sprintf("line %d: failed to parse JSON: %v", lineNum, err),
			})
			response.Failed++
			if !outputJSON {
				fmt.Fprintf(os.Stderr, "Line %d: parse error: %v\n", lineNum, err)
			}
			continue
		}

		if item.ID == "" {
			response.Results = append(response.Results, BatchResult{
				Status: "failed",
				Error:  "id is required",
				Title:  item.Title,
			})
			response.Failed++
			if !outputJSON {
				fmt.Fprintf(os.Stderr, "Line %d: id is required\n", lineNum)
			}
			continue
		}
		if item.Title == "" {
			response.Results = append(response.Results, BatchResult{
				ID:     item.ID,
				Status: "failed",
				Error:  "title is required",
			})
			response.Failed++
			if !outputJSON {
				fmt.Fprintf(os.Stderr, "Line %d: title is required\n", lineNum)
			}
			continue
		}
		if extractFullText {
			item.ExtractFullText = true
		}

		resp, err := api.Post("/papers", item)
		if err != nil {
			response.Results = append(response.Results, BatchResult{
				ID:     item.ID,
				Status: "failed",
				Error:  err.Error(),
				Title:  item.Title,
			})
			response.Failed++
			if !outputJSON {
				fmt.Fprintf(os.Stderr, "Line %d: %v\n", lineNum, err)
			}
			continue
		}

		var paper Paper
		if err := json.Unmarshal(resp.Data, &paper); err != nil {
			response.Results = append(response.Results, BatchResult{
				ID:     item.ID,
				Status: "failed",
				Error:  fmt.Sprintf("failed to parse response: %v", err),
				Title:  item.Title,
			})
			response.Failed++
			continue
		}

		response.Results = append(response.Results, BatchResult{
			ID:     paper.ID,
			Status: "ingested",
			Title:  paper.Title,
		})
		response.Succeeded++

		if !outputJSON {
			fmt.Printf("Ingested: %s - %s\n", paper.ID, paper.Title)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}

	if response.Total == 0 {
		return fmt.Errorf("no papers provided")
	}

	if outputJSON {
		output, _ := json.MarshalIndent(response, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("\nBatch complete: %d succeeded, %d failed out of %d total\n",
			response.Succeeded, response.Failed, response.Total)
	}

	if response.Failed > 0 {
		return fmt.Errorf("batch completed with %d failures", response.Failed)
	}

	return nil
}

func readInput(file string) ([]byte, error) {
	if file != "" {
		input, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		return input, nil
	}
	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	return input, nil
}
