// Package pipeline implements the offline corpus commands: chunking,
// embedding, index rebuilds, remote sync, and snapshot management. These
// talk to the database and vector stores directly rather than going
// through the API server.
package pipeline

import (
	"context"
	"fmt"

	"github.com/helioscope-ai/helioscope/internal/config"
	"github.com/helioscope-ai/helioscope/internal/database"
	"github.com/helioscope-ai/helioscope/internal/index"
	"github.com/helioscope-ai/helioscope/internal/openai"
	"github.com/helioscope-ai/helioscope/internal/pinecone"
	"github.com/helioscope-ai/helioscope/internal/repository"
	"github.com/helioscope-ai/helioscope/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	openaiapi "github.com/sashabaranov/go-openai"
)

// deps bundles the wiring shared by pipeline commands. Fields beyond the
// pool are populated lazily based on what each command asks for.
type deps struct {
	cfg  *config.Config
	pool *pgxpool.Pool

	papers *repository.PaperRepository
	chunks *repository.ChunkRepository
	jobs   *repository.EmbeddingJobRepository

	llm    *openai.Client
	remote *pinecone.ChunkStore
}

type depsOptions struct {
	needDB     bool
	needOpenAI bool

	// needPinecone fails setup when the remote store is not configured;
	// wantPinecone attaches it only when it is.
	needPinecone bool
	wantPinecone bool
}

func setup(ctx context.Context, opts depsOptions) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	d := &deps{cfg: cfg}

	if opts.needDB {
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, err
		}
		d.pool = pool
		d.papers = repository.NewPaperRepository(pool)
		d.chunks = repository.NewChunkRepository(pool)
		d.jobs = repository.NewEmbeddingJobRepository(pool)
	}

	if opts.needOpenAI {
		if !cfg.HasOpenAI() {
			d.Close()
			return nil, fmt.Errorf("OPENAI_API_KEY is required for this command")
		}
		d.llm = openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			EmbeddingModel:      openaiapi.EmbeddingModel(cfg.EmbeddingModel),
			EmbeddingDimensions: cfg.EmbeddingDimensions,
			ChatModel:           cfg.ChatModel,
		})
	}

	if opts.needPinecone || (opts.wantPinecone && cfg.HasPinecone()) {
		if !cfg.HasPinecone() {
			d.Close()
			return nil, fmt.Errorf("PINECONE_API_KEY and PINECONE_INDEX_HOST are required for this command")
		}
		pc := pinecone.New(pinecone.Config{
			IndexHost:  cfg.PineconeIndexHost,
			APIKey:     cfg.PineconeAPIKey,
			Namespace:  cfg.PineconeNamespace,
			Dimensions: cfg.EmbeddingDimensions,
			BatchSize:  cfg.UpsertBatchSize,
		})
		if err := pc.Connect(ctx); err != nil {
			d.Close()
			return nil, fmt.Errorf("failed to connect to pinecone: %w", err)
		}
		d.remote = pinecone.NewChunkStore(pc)
	}

	return d, nil
}

func (d *deps) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
}

func (d *deps) chunker() *service.Chunker {
	return service.NewChunker(service.ChunkConfig{
		MinTokens:         d.cfg.ChunkMinTokens,
		MaxTokens:         d.cfg.ChunkMaxTokens,
		Overlap:           d.cfg.ChunkOverlap,
		SourceField:       d.cfg.ChunkSourceField,
		PreserveSentences: d.cfg.PreserveSentences,
	})
}

// indexFactory builds flat or HNSW indexes per INDEX_TYPE.
func (d *deps) indexFactory() service.IndexFactory {
	cfg := d.cfg
	return func(dimensions int) index.VectorIndex {
		if cfg.IndexType == "hnsw" {
			return index.NewHNSW(dimensions, index.HNSWConfig{
				M:              cfg.HNSWM,
				EfConstruction: cfg.HNSWEfConstruction,
				EfSearch:       cfg.HNSWEfSearch,
			})
		}
		return index.NewFlat(dimensions)
	}
}

func (d *deps) syncService() *service.SyncService {
	var remote service.RemoteChunkFetcher
	if d.remote != nil {
		remote = d.remote
	}
	return service.NewSyncService(
		remote,
		d.chunks,
		d.indexFactory(),
		d.cfg.EmbeddingDimensions,
		d.cfg.IndexPath,
		d.cfg.IndexMetadataPath,
	)
}

func (d *deps) embeddingService() *service.EmbeddingService {
	var upserter service.ChunkUpserter
	if d.remote != nil {
		upserter = d.remote
	}
	return service.NewEmbeddingService(d.llm, d.papers, d.chunks, upserter, d.chunker(), service.EmbeddingConfig{
		Model:     d.cfg.EmbeddingModel,
		BatchSize: d.cfg.EmbeddingBatchSize,
		Normalize: true,
	})
}
