package service

import (
	"context"
	"fmt"
	"log"

	"github.com/helioscope-ai/helioscope/internal/domain"
	"github.com/helioscope-ai/helioscope/internal/index"
	"github.com/helioscope-ai/helioscope/internal/pinecone"
)

// maxRemoteFetch caps how many vectors one rebuild pulls from the remote
// store; the query API cannot page past this.
const maxRemoteFetch = 10000

// RemoteChunkFetcher exposes the bulk-read side of the remote store.
type RemoteChunkFetcher interface {
	FetchAll(ctx context.Context, dimensions, topK int) ([]pinecone.Match, error)
	Count(ctx context.Context) (int, error)
}

// SyncChunkRepository resolves chunk metadata stored locally, which is
// richer than what the remote store keeps.
type SyncChunkRepository interface {
	GetByChunkID(ctx context.Context, chunkID string) (*domain.Chunk, error)
}

// EmbeddedChunkLister pages through the embedded chunks in Postgres.
type EmbeddedChunkLister interface {
	ListEmbedded(ctx context.Context, afterChunkID string, limit int) ([]domain.EmbeddedChunk, error)
}

// IndexFactory builds an empty index of the configured kind.
type IndexFactory func(dimensions int) index.VectorIndex

// SyncReport summarizes one local rebuild.
type SyncReport struct {
	RemoteTotal  int
	Retrieved    int
	Indexed      int
	SkippedEmpty int
}

// SyncService rebuilds the local vector index from the remote store or
// from an exported chunks file.
type SyncService struct {
	remote     RemoteChunkFetcher
	chunks     SyncChunkRepository
	newIndex   IndexFactory
	dimensions int
	indexPath  string
	metaPath   string
}

// NewSyncService creates a new SyncService instance
func NewSyncService(
	remote RemoteChunkFetcher,
	chunks SyncChunkRepository,
	newIndex IndexFactory,
	dimensions int,
	indexPath, metaPath string,
) *SyncService {
	if metaPath == "" {
		indexPath, metaPath = index.SnapshotPaths(indexPath)
	}
	return &SyncService{
		remote:     remote,
		chunks:     chunks,
		newIndex:   newIndex,
		dimensions: dimensions,
		indexPath:  indexPath,
		metaPath:   metaPath,
	}
}

// RebuildFromRemote pulls every vector the remote store will return and
// rebuilds the local index from them. Remote metadata is used as a
// fallback when the chunk repository has no record for an id.
func (s *SyncService) RebuildFromRemote(ctx context.Context) (*SyncReport, error) {
	if s.remote == nil {
		return nil, domain.ErrVectorStoreOffline
	}

	total, err := s.remote.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count remote vectors: %w", err)
	}
	if total == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidOperation, "remote store holds no vectors")
	}

	topK := total
	if topK > maxRemoteFetch {
		log.Printf("sync: remote holds %d vectors, fetching first %d", total, maxRemoteFetch)
		topK = maxRemoteFetch
	}
	matches, err := s.remote.FetchAll(ctx, s.dimensions, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch remote vectors: %w", err)
	}

	report := &SyncReport{RemoteTotal: total, Retrieved: len(matches)}
	vectors := make([][]float32, 0, len(matches))
	metas := make([]index.Metadata, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		if len(m.Values) != s.dimensions {
			report.SkippedEmpty++
			continue
		}
		vectors = append(vectors, m.Values)
		metas = append(metas, s.resolveMetadata(ctx, m))
	}

	if len(vectors) == 0 {
		return report, domain.NewDomainError(domain.ErrCodeInvalidOperation, "no usable vectors retrieved")
	}
	if err := s.buildAndSave(vectors, metas); err != nil {
		return report, err
	}
	report.Indexed = len(vectors)
	return report, nil
}

// RebuildFromStore rebuilds the local index from the embedded chunks in
// Postgres, the authoritative copy.
func (s *SyncService) RebuildFromStore(ctx context.Context, lister EmbeddedChunkLister) (*SyncReport, error) {
	const pageSize = 500

	report := &SyncReport{}
	var vectors [][]float32
	var metas []index.Metadata
	after := ""
	for {
		page, err := lister.ListEmbedded(ctx, after, pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list embedded chunks: %w", err)
		}
		if len(page) == 0 {
			break
		}
		for i := range page {
			c := &page[i]
			report.Retrieved++
			if len(c.Embedding) != s.dimensions {
				report.SkippedEmpty++
				continue
			}
			vectors = append(vectors, c.Embedding)
			metas = append(metas, chunkIndexMetadata(&c.Chunk))
		}
		after = page[len(page)-1].ChunkID
		if len(page) < pageSize {
			break
		}
	}

	if len(vectors) == 0 {
		return report, domain.NewDomainError(domain.ErrCodeInvalidOperation, "no embedded chunks stored")
	}
	if err := s.buildAndSave(vectors, metas); err != nil {
		return report, err
	}
	report.Indexed = len(vectors)
	return report, nil
}

// RebuildFromChunksFile rebuilds the local index from an NDJSON export of
// embedded chunks.
func (s *SyncService) RebuildFromChunksFile(path string) (*SyncReport, error) {
	chunks, err := ReadEmbeddedChunksFile(path)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidOperation, "chunks file holds no chunks")
	}

	report := &SyncReport{Retrieved: len(chunks)}
	vectors := make([][]float32, 0, len(chunks))
	metas := make([]index.Metadata, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		if _, dup := seen[c.ChunkID]; dup {
			continue
		}
		seen[c.ChunkID] = struct{}{}
		if len(c.Embedding) != s.dimensions {
			report.SkippedEmpty++
			continue
		}
		vectors = append(vectors, c.Embedding)
		metas = append(metas, chunkIndexMetadata(&c.Chunk))
	}

	if len(vectors) == 0 {
		return report, domain.NewDomainError(domain.ErrCodeInvalidOperation, "no usable vectors in chunks file")
	}
	if err := s.buildAndSave(vectors, metas); err != nil {
		return report, err
	}
	report.Indexed = len(vectors)
	return report, nil
}

// resolveMetadata prefers the chunk repository record over the remote
// metadata copy, which truncates text.
func (s *SyncService) resolveMetadata(ctx context.Context, m pinecone.Match) index.Metadata {
	if s.chunks != nil {
		if c, err := s.chunks.GetByChunkID(ctx, m.ID); err == nil && c != nil {
			return chunkIndexMetadata(c)
		}
	}

	meta := index.Metadata{
		ChunkID:     m.ID,
		PaperID:     metaString(m.Metadata, "paper_id"),
		Title:       metaString(m.Metadata, "title"),
		Authors:     metaString(m.Metadata, "authors"),
		Text:        metaString(m.Metadata, "text"),
		SourceField: metaString(m.Metadata, "source_field"),
		Version:     metaString(m.Metadata, "version"),
	}
	if meta.PaperID == "" {
		meta.PaperID = paperIDFromChunkID(m.ID)
	}
	if v, ok := m.Metadata["chunk_index"].(float64); ok {
		meta.ChunkIndex = int(v)
	}
	if v, ok := m.Metadata["total_chunks"].(float64); ok {
		meta.TotalChunks = int(v)
	}
	if v, ok := m.Metadata["char_count"].(float64); ok {
		meta.CharCount = int(v)
	}
	return meta
}

func chunkIndexMetadata(c *domain.Chunk) index.Metadata {
	return index.Metadata{
		ChunkID:     c.ChunkID,
		PaperID:     c.PaperID,
		ChunkIndex:  c.ChunkIndex,
		TotalChunks: c.TotalChunks,
		Title:       c.Title,
		Authors:     c.Authors,
		Text:        c.Text,
		SourceField: c.SourceField,
		Version:     c.Version,
		CharCount:   c.CharCount,
	}
}

func (s *SyncService) buildAndSave(vectors [][]float32, metas []index.Metadata) error {
	idx := s.newIndex(s.dimensions)
	if err := idx.Add(vectors, metas); err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}
	if err := idx.Save(s.indexPath, s.metaPath); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}
	return nil
}
