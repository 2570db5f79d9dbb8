package repository

import (
	"context"
	"errors"
	"time"

	"github.com/helioscope-ai/helioscope/internal/domain"
	"github.com/helioscope-ai/helioscope/internal/pagination"
	"github.com/helioscope-ai/helioscope/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const paperColumns = `id, title, authors, abstract, categories, published_date, pdf_url, full_text, version, created_at, updated_at`

type PaperRepository struct {
	db dbtx
}

func NewPaperRepository(pool *pgxpool.Pool) *PaperRepository {
	return &PaperRepository{db: pool}
}

func NewPaperRepositoryWithTx(tx pgx.Tx) *PaperRepository {
	return &PaperRepository{db: tx}
}

func (r *PaperRepository) Create(ctx context.Context, p *domain.Paper) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO papers (id, title, authors, abstract, categories, published_date, pdf_url, full_text, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.Title, p.Authors, p.Abstract, p.Categories, p.PublishedDate,
		nullableString(p.PDFURL), nullableString(p.FullText), p.Version, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrPaperAlreadyExists
	}
	return err
}

func (r *PaperRepository) GetByID(ctx context.Context, id string) (*domain.Paper, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE id = $1`, id)
	p, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaperNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *PaperRepository) Update(ctx context.Context, p *domain.Paper) error {
	p.UpdatedAt = time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE papers
		 SET title = $1, authors = $2, abstract = $3, categories = $4, published_date = $5,
		     pdf_url = $6, full_text = $7, version = $8, updated_at = $9
		 WHERE id = $10`,
		p.Title, p.Authors, p.Abstract, p.Categories, p.PublishedDate,
		nullableString(p.PDFURL), nullableString(p.FullText), p.Version, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrPaperNotFound
	}
	return nil
}

func (r *PaperRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM papers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrPaperNotFound
	}
	return nil
}

func (r *PaperRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.PaperPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error
	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+paperColumns+`
			 FROM papers
			 WHERE (created_at, id) < ($1, $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+paperColumns+`
			 FROM papers
			 ORDER BY created_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanPaperRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}

	return &service.PaperPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// SearchLexical ranks papers by Postgres full-text match over title,
// abstract, and full text. Scores are ts_rank values.
func (r *PaperRepository) SearchLexical(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, title, authors, abstract, categories,
		        ts_rank(search_vector, plainto_tsquery('english', $1)) AS rank
		 FROM papers
		 WHERE search_vector @@ plainto_tsquery('english', $1)
		 ORDER BY rank DESC
		 LIMIT $2`,
		query, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var res domain.SearchResult
		var categories []string
		if err := rows.Scan(&res.PaperID, &res.Title, &res.Authors, &res.Abstract, &categories, &res.Score); err != nil {
			return nil, err
		}
		res.Categories = categories
		results = append(results, res)
	}
	return results, rows.Err()
}

func (r *PaperRepository) CorpusStats(ctx context.Context) (*domain.CorpusStats, error) {
	var stats domain.CorpusStats
	err := r.db.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM papers),
			(SELECT COUNT(*) FROM paper_chunks),
			(SELECT COUNT(DISTINCT paper_id) FROM paper_chunks),
			(SELECT COUNT(*) FROM conversations),
			(SELECT COUNT(*) FROM embedding_jobs WHERE status = 'pending')`,
	).Scan(&stats.PaperCount, &stats.ChunkCount, &stats.EmbeddedPapers, &stats.ConversationCount, &stats.PendingJobs)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func scanPaper(row pgx.Row) (*domain.Paper, error) {
	var p domain.Paper
	var pdfURL, fullText *string
	err := row.Scan(&p.ID, &p.Title, &p.Authors, &p.Abstract, &p.Categories, &p.PublishedDate,
		&pdfURL, &fullText, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if pdfURL != nil {
		p.PDFURL = *pdfURL
	}
	if fullText != nil {
		p.FullText = *fullText
	}
	return &p, nil
}

func scanPaperRows(rows pgx.Rows) ([]*domain.Paper, error) {
	var results []*domain.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}
