// Package index provides in-process vector indexes over normalized
// embeddings, with inner-product scoring and snapshot persistence.
package index

import "errors"

var (
	// ErrNotInitialized is returned when searching before any vectors were
	// added or loaded.
	ErrNotInitialized = errors.New("vector index not initialized")
	// ErrDimensionMismatch is returned when a vector does not match the
	// index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrMetadataSkew is returned when vector and metadata counts disagree.
	ErrMetadataSkew = errors.New("vector and metadata record counts disagree")
)

// Metadata is the per-vector record kept positionally aligned with the
// stored vectors. Text is truncated by the writer; the chunk repository
// holds the full text.
type Metadata struct {
	ChunkID     string `json:"chunk_id"`
	PaperID     string `json:"paper_id"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	Title       string `json:"title"`
	Authors     string `json:"authors"`
	Text        string `json:"text"`
	SourceField string `json:"source_field,omitempty"`
	Version     string `json:"version,omitempty"`
	CharCount   int    `json:"char_count,omitempty"`
}

// Hit is one search result. Score is the inner product with the query,
// which equals cosine similarity for normalized vectors.
type Hit struct {
	Position int
	Score    float32
	Meta     Metadata
}

// VectorIndex is implemented by both index variants.
type VectorIndex interface {
	Add(vectors [][]float32, metas []Metadata) error
	Search(query []float32, k int) ([]Hit, error)
	Len() int
	Dimensions() int
	Save(indexPath, metaPath string) error
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
