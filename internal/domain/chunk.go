package domain

import (
	"fmt"
	"time"
)

// Chunk represents one token window cut from a paper field. ChunkID follows
// the "{paper_id}_chunk_{index}" convention so re-chunking a paper produces
// the same identifiers and upserts overwrite in place.
type Chunk struct {
	ChunkID     string `json:"chunk_id"`
	PaperID     string `json:"paper_id"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	Text        string `json:"text"`
	TokenCount  int    `json:"token_count"`
	StartChar   int    `json:"start_char"`
	EndChar     int    `json:"end_char"`
	CharCount   int    `json:"char_count"`
	SourceField string `json:"source_field"`

	// Denormalized from the paper so a chunk is self-describing in
	// search results and remote store metadata.
	Title   string `json:"title,omitempty"`
	Authors string `json:"authors,omitempty"`
	Version string `json:"version,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ChunkID formats the canonical chunk identifier for a paper and index.
func ChunkID(paperID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", paperID, index)
}

// EmbeddedChunk pairs a chunk with its embedding vector.
type EmbeddedChunk struct {
	Chunk
	Embedding      []float32 `json:"embedding"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
}

// ValidateChunk validates a Chunk instance
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}

	if c.ChunkID == "" {
		return fmt.Errorf("chunk ChunkID is required")
	}

	if c.PaperID == "" {
		return fmt.Errorf("chunk PaperID is required")
	}

	if c.Text == "" {
		return fmt.Errorf("chunk Text is required")
	}

	if c.ChunkIndex < 0 {
		return fmt.Errorf("chunk ChunkIndex cannot be negative")
	}

	if c.TotalChunks <= c.ChunkIndex {
		return fmt.Errorf("chunk TotalChunks must exceed ChunkIndex")
	}

	return nil
}
