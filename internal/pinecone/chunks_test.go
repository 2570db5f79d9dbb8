package pinecone

import (
	"strings"
	"testing"

	"github.com/helioscope-ai/helioscope/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestChunkMetadata_CarriesChunkFields(t *testing.T) {
	meta := chunkMetadata(&domain.Chunk{
		ChunkID:     "2301.04567_chunk_0",
		PaperID:     "2301.04567",
		ChunkIndex:  0,
		TotalChunks: 2,
		Text:        "rotation curves",
		CharCount:   15,
		SourceField: "abstract",
		Title:       "Dark Matter Halos",
		Authors:     "J. Doe",
		Version:     "v2",
	})

	assert.Equal(t, "2301.04567", meta["paper_id"])
	assert.Equal(t, "rotation curves", meta["text"])
	assert.Equal(t, "v2", meta["version"])
	assert.Equal(t, 15, meta["char_count"])
}

func TestChunkMetadata_TruncatesTextOnRunes(t *testing.T) {
	meta := chunkMetadata(&domain.Chunk{
		ChunkID: "p_chunk_0",
		PaperID: "p",
		Text:    strings.Repeat("ω", metadataTextLimit+50),
	})

	text := meta["text"].(string)
	assert.Equal(t, metadataTextLimit, len([]rune(text)))
}
