package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/helioscope-ai/helioscope/internal/domain"
	"github.com/helioscope-ai/helioscope/internal/pagination"
	"github.com/helioscope-ai/helioscope/internal/telemetry"
)

// PaperRepositoryInterface defines the repository interface for paper persistence
type PaperRepositoryInterface interface {
	Create(ctx context.Context, p *domain.Paper) error
	GetByID(ctx context.Context, id string) (*domain.Paper, error)
	Update(ctx context.Context, p *domain.Paper) error
	Delete(ctx context.Context, id string) error
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*PaperPageResult, error)
	CorpusStats(ctx context.Context) (*domain.CorpusStats, error)
}

type PaperPageResult struct {
	Items      []*domain.Paper
	NextCursor string
	HasMore    bool
}

// EmbeddingJobRepositoryInterface defines the repository interface for embedding job persistence
type EmbeddingJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.EmbeddingJob) error
}

// TextExtractor pulls plain text out of a source document, typically a PDF.
type TextExtractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// PaperService handles paper ingestion and lifecycle. Every write that
// changes embeddable text queues an embedding job so the vector stores
// catch up asynchronously.
type PaperService struct {
	paperRepo PaperRepositoryInterface
	jobRepo   EmbeddingJobRepositoryInterface
	extractor TextExtractor
	uuidGen   UUIDGenerator
	tx        TxRunner
}

// NewPaperService creates a new PaperService instance
func NewPaperService(
	paperRepo PaperRepositoryInterface,
	jobRepo EmbeddingJobRepositoryInterface,
	extractor TextExtractor,
) *PaperService {
	return &PaperService{
		paperRepo: paperRepo,
		jobRepo:   jobRepo,
		extractor: extractor,
		uuidGen:   &DefaultUUIDGenerator{},
	}
}

// WithTxRunner makes paper writes and their embedding jobs commit in one
// transaction. Without a runner the two writes are sequential and a crash
// between them loses the job.
func (s *PaperService) WithTxRunner(tx TxRunner) *PaperService {
	s.tx = tx
	return s
}

// NewPaperServiceWithUUIDGen creates a new PaperService with custom UUID generator (for testing)
func NewPaperServiceWithUUIDGen(
	paperRepo PaperRepositoryInterface,
	jobRepo EmbeddingJobRepositoryInterface,
	extractor TextExtractor,
	uuidGen UUIDGenerator,
) *PaperService {
	return &PaperService{
		paperRepo: paperRepo,
		jobRepo:   jobRepo,
		extractor: extractor,
		uuidGen:   uuidGen,
	}
}

// IngestInput represents the input for ingesting a paper
type IngestInput struct {
	ID            string
	Title         string
	Authors       string
	Abstract      string
	Categories    []string
	PublishedDate *time.Time
	PDFURL        string
	FullText      string
	Version       string

	// ExtractFullText fetches the PDF text when FullText is empty and a
	// PDFURL is present. Extraction failures are non-fatal.
	ExtractFullText bool
}

type ListPapersInput struct {
	Cursor string
	Limit  int
}

type ListPapersOutput struct {
	Items   []*domain.Paper
	Cursor  string
	HasMore bool
}

// Ingest creates a paper record and queues an embedding job for it.
func (s *PaperService) Ingest(ctx context.Context, input IngestInput) (*domain.Paper, error) {
	ctx, span := telemetry.StartSpan(ctx, "PaperService.Ingest", telemetry.SpanAttributes{
		PaperID:   input.ID,
		Operation: "ingest",
	})
	defer span.End()

	now := time.Now().UTC()
	paper := &domain.Paper{
		ID:            strings.TrimSpace(input.ID),
		Title:         strings.TrimSpace(input.Title),
		Authors:       input.Authors,
		Abstract:      input.Abstract,
		Categories:    input.Categories,
		PublishedDate: input.PublishedDate,
		PDFURL:        input.PDFURL,
		FullText:      input.FullText,
		Version:       strings.TrimSpace(input.Version),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if paper.FullText == "" && input.ExtractFullText && paper.PDFURL != "" && s.extractor != nil {
		text, err := s.extractor.Extract(ctx, paper.PDFURL)
		if err != nil {
			telemetry.AddBreadcrumb(ctx, "ingest", "full text extraction failed: "+err.Error())
		} else {
			paper.FullText = text
		}
	}

	if err := domain.ValidatePaper(paper); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid paper", err)
	}

	if err := s.writeWithJob(ctx, paper, now, func(repo PaperRepositoryInterface) error {
		return repo.Create(ctx, paper)
	}); err != nil {
		span.SetError(err)
		return nil, err
	}
	return paper, nil
}

// GetByID retrieves a paper by ID
func (s *PaperService) GetByID(ctx context.Context, id string) (*domain.Paper, error) {
	return s.paperRepo.GetByID(ctx, id)
}

// Update overwrites a paper's mutable fields and queues a re-embedding job.
func (s *PaperService) Update(ctx context.Context, input IngestInput) (*domain.Paper, error) {
	ctx, span := telemetry.StartSpan(ctx, "PaperService.Update", telemetry.SpanAttributes{
		PaperID:   input.ID,
		Operation: "update",
	})
	defer span.End()

	paper, err := s.paperRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	paper.Title = strings.TrimSpace(input.Title)
	paper.Authors = input.Authors
	paper.Abstract = input.Abstract
	paper.Categories = input.Categories
	paper.PublishedDate = input.PublishedDate
	paper.PDFURL = input.PDFURL
	if input.FullText != "" {
		paper.FullText = input.FullText
	}
	if input.Version != "" {
		paper.Version = strings.TrimSpace(input.Version)
	}
	paper.UpdatedAt = now

	if err := domain.ValidatePaper(paper); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid paper", err)
	}

	if err := s.writeWithJob(ctx, paper, now, func(repo PaperRepositoryInterface) error {
		return repo.Update(ctx, paper)
	}); err != nil {
		span.SetError(err)
		return nil, err
	}
	return paper, nil
}

// Delete removes a paper. Its chunks go with it via the schema's cascade;
// remote vectors are reconciled by the next sync.
func (s *PaperService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "PaperService.Delete", telemetry.SpanAttributes{
		PaperID:   id,
		Operation: "delete",
	})
	defer span.End()

	return s.paperRepo.Delete(ctx, id)
}

// ListPapers pages through the corpus newest-first.
func (s *PaperService) ListPapers(ctx context.Context, input ListPapersInput) (*ListPapersOutput, error) {
	cursor, _ := pagination.DecodeCursor(input.Cursor)
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := s.paperRepo.ListWithCursor(ctx, cursor, limit)
	if err != nil {
		return nil, err
	}
	return &ListPapersOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// CorpusStats reports corpus-wide counts.
func (s *PaperService) CorpusStats(ctx context.Context) (*domain.CorpusStats, error) {
	return s.paperRepo.CorpusStats(ctx)
}

// writeWithJob applies a paper write and queues its embedding job, in one
// transaction when a TxRunner is attached.
func (s *PaperService) writeWithJob(ctx context.Context, paper *domain.Paper, now time.Time, write func(repo PaperRepositoryInterface) error) error {
	job := &domain.EmbeddingJob{
		ID:        s.uuidGen.NewString(),
		PaperID:   paper.ID,
		Status:    domain.EmbeddingJobStatusPending,
		CreatedAt: now,
	}

	if s.tx != nil {
		return s.tx.WithTx(ctx, func(repos TxRepositories) error {
			if err := write(repos.Papers()); err != nil {
				return err
			}
			return repos.EmbeddingJobs().Create(ctx, job)
		})
	}

	if err := write(s.paperRepo); err != nil {
		return err
	}
	return s.jobRepo.Create(ctx, job)
}
