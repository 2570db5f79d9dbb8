package service

import (
	"context"

	"github.com/helioscope-ai/helioscope/internal/domain"
)

// SearchLogResult captures a single result entry for logging.
type SearchLogResult struct {
	PaperID string  `json:"paper_id"`
	ChunkID string  `json:"chunk_id,omitempty"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

// SearchLogEntry captures a search request and its results.
type SearchLogEntry struct {
	Query      string
	Mode       domain.SearchMode
	Limit      int
	DurationMs int
	Results    []SearchLogResult
}

// SearchLogRepository persists search logs for evaluation.
type SearchLogRepository interface {
	CreateSearchLog(ctx context.Context, entry SearchLogEntry) (string, error)
	RecordSearchSelection(ctx context.Context, searchID, paperID, source string) error
}

func logResults(results []domain.SearchResult) []SearchLogResult {
	out := make([]SearchLogResult, len(results))
	for i, r := range results {
		out[i] = SearchLogResult{
			PaperID: r.PaperID,
			ChunkID: r.ChunkID,
			Source:  r.Source,
			Score:   r.Score,
		}
	}
	return out
}
