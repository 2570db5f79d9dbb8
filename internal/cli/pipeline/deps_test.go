package pipeline

import (
	"testing"

	"github.com/helioscope-ai/helioscope/internal/config"
	"github.com/helioscope-ai/helioscope/internal/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexFactory_Flat(t *testing.T) {
	d := &deps{cfg: &config.Config{IndexType: "flat"}}

	idx := d.indexFactory()(384)
	require.NotNil(t, idx)
	assert.IsType(t, &index.Flat{}, idx)
}

func TestIndexFactory_HNSW(t *testing.T) {
	d := &deps{cfg: &config.Config{
		IndexType:          "hnsw",
		HNSWM:              16,
		HNSWEfConstruction: 200,
		HNSWEfSearch:       50,
	}}

	idx := d.indexFactory()(384)
	require.NotNil(t, idx)
	assert.IsType(t, &index.HNSW{}, idx)
}

func TestChunker_UsesConfig(t *testing.T) {
	d := &deps{cfg: &config.Config{
		ChunkMinTokens:    200,
		ChunkMaxTokens:    600,
		ChunkOverlap:      75,
		ChunkSourceField:  "abstract",
		PreserveSentences: true,
	}}

	cfg := d.chunker().Config()
	assert.Equal(t, 200, cfg.MinTokens)
	assert.Equal(t, 600, cfg.MaxTokens)
	assert.Equal(t, 75, cfg.Overlap)
	assert.Equal(t, "abstract", cfg.SourceField)
	assert.True(t, cfg.PreserveSentences)
}
