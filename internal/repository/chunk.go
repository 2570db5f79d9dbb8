package repository

import (
	"context"
	"errors"
	"time"

	"github.com/helioscope-ai/helioscope/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepository persists embedded paper chunks. It is the durable copy;
// the in-process index and the remote store are both rebuilt from it.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx dbtx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// ReplaceChunks deletes existing chunks for a paper and inserts new ones.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, paperID string, chunks []domain.EmbeddedChunk) error {
	_, err := r.db.Exec(ctx, `DELETE FROM paper_chunks WHERE paper_id = $1`, paperID)
	if err != nil {
		return err
	}

	if len(chunks) == 0 {
		return nil
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO paper_chunks
				(chunk_id, paper_id, chunk_index, total_chunks, text, token_count, start_char, end_char, char_count, source_field, title, authors, version, embedding, embedding_model, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			c.ChunkID,
			c.PaperID,
			c.ChunkIndex,
			c.TotalChunks,
			c.Text,
			c.TokenCount,
			c.StartChar,
			c.EndChar,
			c.CharCount,
			c.SourceField,
			c.Title,
			c.Authors,
			c.Version,
			pgvector.NewVector(c.Embedding),
			nullableString(c.EmbeddingModel),
			createdAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *ChunkRepository) GetByChunkID(ctx context.Context, chunkID string) (*domain.Chunk, error) {
	var c domain.Chunk
	err := r.db.QueryRow(ctx,
		`SELECT chunk_id, paper_id, chunk_index, total_chunks, text, token_count, start_char, end_char, char_count, source_field, title, authors, version, created_at
		 FROM paper_chunks WHERE chunk_id = $1`,
		chunkID,
	).Scan(&c.ChunkID, &c.PaperID, &c.ChunkIndex, &c.TotalChunks, &c.Text, &c.TokenCount,
		&c.StartChar, &c.EndChar, &c.CharCount, &c.SourceField, &c.Title, &c.Authors, &c.Version, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChunkNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListEmbedded streams all embedded chunks ordered by chunk id, paged by
// the last id seen. Used for index rebuilds and NDJSON exports.
func (r *ChunkRepository) ListEmbedded(ctx context.Context, afterChunkID string, limit int) ([]domain.EmbeddedChunk, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.db.Query(ctx,
		`SELECT chunk_id, paper_id, chunk_index, total_chunks, text, token_count, start_char, end_char, char_count, source_field, title, authors, version, embedding, embedding_model, created_at
		 FROM paper_chunks
		 WHERE chunk_id > $1
		 ORDER BY chunk_id ASC
		 LIMIT $2`,
		afterChunkID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []domain.EmbeddedChunk
	for rows.Next() {
		var c domain.EmbeddedChunk
		var vec pgvector.Vector
		var model *string
		if err := rows.Scan(&c.ChunkID, &c.PaperID, &c.ChunkIndex, &c.TotalChunks, &c.Text, &c.TokenCount,
			&c.StartChar, &c.EndChar, &c.CharCount, &c.SourceField, &c.Title, &c.Authors, &c.Version, &vec, &model, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Embedding = vec.Slice()
		if model != nil {
			c.EmbeddingModel = *model
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// SearchByVector ranks chunks by inner product against the query embedding.
func (r *ChunkRepository) SearchByVector(ctx context.Context, embedding []float32, limit int) ([]domain.SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(ctx,
		`SELECT chunk_id, paper_id, title, authors, text,
		        (embedding <#> $1) * -1 AS score
		 FROM paper_chunks
		 ORDER BY embedding <#> $1
		 LIMIT $2`,
		pgvector.NewVector(embedding), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var res domain.SearchResult
		if err := rows.Scan(&res.ChunkID, &res.PaperID, &res.Title, &res.Authors, &res.Snippet, &res.Score); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

func (r *ChunkRepository) CountByPaper(ctx context.Context, paperID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM paper_chunks WHERE paper_id = $1`, paperID,
	).Scan(&count)
	return count, err
}
