package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/helioscope-ai/helioscope/internal/domain"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingPaperRepository defines the repository interface for embedding operations
type EmbeddingPaperRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Paper, error)
}

// EmbeddingChunkRepository persists embedded chunks for a paper
type EmbeddingChunkRepository interface {
	ReplaceChunks(ctx context.Context, paperID string, chunks []domain.EmbeddedChunk) error
}

// ChunkUpserter pushes embedded chunks to the remote vector store
type ChunkUpserter interface {
	UpsertChunks(ctx context.Context, chunks []domain.EmbeddedChunk) (upserted, failed int, err error)
}

// EmbeddingConfig tunes batch embedding.
type EmbeddingConfig struct {
	Model       string
	BatchSize   int
	Concurrency int
	Normalize   bool
}

// DefaultEmbeddingConfig provides the production embedding defaults.
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Model:       "text-embedding-3-small",
		BatchSize:   32,
		Concurrency: 4,
		Normalize:   true,
	}
}

// EmbeddingService chunks papers and generates embeddings for them
type EmbeddingService struct {
	client    EmbeddingClient
	paperRepo EmbeddingPaperRepository
	chunkRepo EmbeddingChunkRepository
	store     ChunkUpserter
	chunker   *Chunker
	cfg       EmbeddingConfig
}

// NewEmbeddingService creates a new EmbeddingService instance. store may be
// nil when no remote vector store is configured.
func NewEmbeddingService(
	client EmbeddingClient,
	paperRepo EmbeddingPaperRepository,
	chunkRepo EmbeddingChunkRepository,
	store ChunkUpserter,
	chunker *Chunker,
	cfg EmbeddingConfig,
) *EmbeddingService {
	def := DefaultEmbeddingConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if chunker == nil {
		chunker = NewChunker(DefaultChunkConfig())
	}
	return &EmbeddingService{
		client:    client,
		paperRepo: paperRepo,
		chunkRepo: chunkRepo,
		store:     store,
		chunker:   chunker,
		cfg:       cfg,
	}
}

// EmbedPaper chunks one paper, embeds the chunks, replaces the stored chunk
// set, and pushes the vectors to the remote store when one is configured.
// This method is called by the background worker.
func (s *EmbeddingService) EmbedPaper(ctx context.Context, paperID string) error {
	paper, err := s.paperRepo.GetByID(ctx, paperID)
	if err != nil {
		return err
	}

	chunks := s.chunker.ChunkPaper(paper)
	if len(chunks) == 0 {
		// Nothing to embed; drop any stale chunks from a prior version.
		if err := s.chunkRepo.ReplaceChunks(ctx, paperID, nil); err != nil {
			return fmt.Errorf("failed to clear chunks: %w", err)
		}
		return nil
	}

	embedded, err := s.EmbedChunks(ctx, chunks)
	if err != nil {
		return err
	}

	if err := s.chunkRepo.ReplaceChunks(ctx, paperID, embedded); err != nil {
		return fmt.Errorf("failed to replace chunks: %w", err)
	}

	if s.store != nil {
		upserted, failed, err := s.store.UpsertChunks(ctx, embedded)
		if err != nil {
			return fmt.Errorf("failed to upsert chunks: %w", err)
		}
		if failed > 0 {
			log.Printf("embedding: paper %s: %d of %d chunk vectors failed to upsert", paperID, failed, upserted+failed)
		}
	}

	return nil
}

// EmbedChunks embeds chunks in batches, fanning batches out across a bounded
// worker pool. Output order matches input order.
func (s *EmbeddingService) EmbedChunks(ctx context.Context, chunks []domain.Chunk) ([]domain.EmbeddedChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	type batch struct {
		start int
		texts []string
	}
	var batches []batch
	for start := 0; start < len(chunks); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		batches = append(batches, batch{start: start, texts: texts})
	}

	vectors := make([][]float32, len(chunks))
	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, b := range batches {
		wg.Add(1)
		sem <- struct{}{}
		go func(b batch) {
			defer wg.Done()
			defer func() { <-sem }()

			mu.Lock()
			failed := firstErr != nil
			mu.Unlock()
			if failed {
				return
			}

			embeddings, err := s.client.GenerateEmbeddings(ctx, b.texts)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("failed to embed batch at %d: %w", b.start, err)
				}
				mu.Unlock()
				return
			}
			for i, e := range embeddings {
				vectors[b.start+i] = e
			}
		}(b)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	embedded := make([]domain.EmbeddedChunk, len(chunks))
	for i, c := range chunks {
		v := vectors[i]
		if s.cfg.Normalize {
			v = normalizeVector(v)
		}
		embedded[i] = domain.EmbeddedChunk{
			Chunk:          c,
			Embedding:      v,
			EmbeddingModel: s.cfg.Model,
		}
	}
	return embedded, nil
}

// EmbedQuery embeds a search query with the same model and normalization as
// the chunk vectors.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	embedding, err := s.client.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if s.cfg.Normalize {
		embedding = normalizeVector(embedding)
	}
	return embedding, nil
}

// normalizeVector scales a vector to unit L2 norm. Zero vectors pass
// through unchanged.
func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
