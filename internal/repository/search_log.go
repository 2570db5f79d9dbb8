package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/helioscope-ai/helioscope/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SearchLogRepository stores search logs for evaluation/feedback loops.
type SearchLogRepository struct {
	pool *pgxpool.Pool
}

func NewSearchLogRepository(pool *pgxpool.Pool) *SearchLogRepository {
	return &SearchLogRepository{pool: pool}
}

func (r *SearchLogRepository) CreateSearchLog(ctx context.Context, entry service.SearchLogEntry) (string, error) {
	resultsJSON, _ := json.Marshal(entry.Results)

	var id string
	err := r.pool.QueryRow(ctx,
		`INSERT INTO search_logs (query, mode, result_limit, results, result_count, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		entry.Query,
		string(entry.Mode),
		entry.Limit,
		resultsJSON,
		len(entry.Results),
		entry.DurationMs,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *SearchLogRepository) RecordSearchSelection(ctx context.Context, searchID, paperID, source string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE search_logs
		 SET chosen_paper_id = $1, chosen_source = $2, chosen_at = $3
		 WHERE id = $4`,
		paperID,
		source,
		time.Now().UTC(),
		searchID,
	)
	return err
}
