package pinecone

import (
	"context"

	"github.com/helioscope-ai/helioscope/internal/domain"
)

// metadataTextLimit bounds chunk text stored in remote metadata. The chunk
// repository keeps the full text.
const metadataTextLimit = 1000

// ChunkStore adapts the data-plane client to the chunk-level operations the
// services consume.
type ChunkStore struct {
	client *Client
}

func NewChunkStore(client *Client) *ChunkStore {
	return &ChunkStore{client: client}
}

// UpsertChunks writes embedded chunks keyed by chunk id, so re-ingesting a
// paper overwrites its vectors in place.
func (s *ChunkStore) UpsertChunks(ctx context.Context, chunks []domain.EmbeddedChunk) (upserted, failed int, err error) {
	vectors := make([]Vector, len(chunks))
	for i, c := range chunks {
		vectors[i] = Vector{
			ID:       c.ChunkID,
			Values:   c.Embedding,
			Metadata: chunkMetadata(&c.Chunk),
		}
	}

	res, err := s.client.Upsert(ctx, vectors)
	if err != nil {
		return 0, 0, err
	}
	return res.Upserted, res.Failed, nil
}

// QueryChunks searches the remote index and returns raw matches.
func (s *ChunkStore) QueryChunks(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	return s.client.Query(ctx, vector, topK, nil)
}

// FetchAll pulls up to topK vectors with their values via a zero-vector
// query. With inner-product scoring every stored vector matches, which is
// the only bulk export the query API offers.
func (s *ChunkStore) FetchAll(ctx context.Context, dimensions, topK int) ([]Match, error) {
	zero := make([]float32, dimensions)
	return s.client.QueryWithValues(ctx, zero, topK, nil)
}

// Count reports the total number of vectors the store holds.
func (s *ChunkStore) Count(ctx context.Context) (int, error) {
	stats, err := s.client.DescribeStats(ctx)
	if err != nil {
		return 0, err
	}
	return stats.TotalVectorCount, nil
}

func chunkMetadata(c *domain.Chunk) map[string]interface{} {
	text := c.Text
	if r := []rune(text); len(r) > metadataTextLimit {
		text = string(r[:metadataTextLimit])
	}
	return map[string]interface{}{
		"paper_id":     c.PaperID,
		"chunk_index":  c.ChunkIndex,
		"total_chunks": c.TotalChunks,
		"title":        c.Title,
		"authors":      c.Authors,
		"text":         text,
		"source_field": c.SourceField,
		"version":      c.Version,
		"char_count":   c.CharCount,
	}
}
