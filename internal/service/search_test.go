package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/helioscope-ai/helioscope/internal/domain"
	"github.com/helioscope-ai/helioscope/internal/index"
	"github.com/helioscope-ai/helioscope/internal/pinecone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSearchPaperRepo mocks the paper repository for search
type MockSearchPaperRepo struct {
	mock.Mock
}

func (m *MockSearchPaperRepo) SearchLexical(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchResult), args.Error(1)
}

func (m *MockSearchPaperRepo) GetByID(ctx context.Context, id string) (*domain.Paper, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Paper), args.Error(1)
}

// MockLocalSearcher mocks the local vector index
type MockLocalSearcher struct {
	mock.Mock
}

func (m *MockLocalSearcher) Search(query []float32, k int) ([]index.Hit, error) {
	args := m.Called(query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]index.Hit), args.Error(1)
}

// MockRemoteSearcher mocks the remote vector store
type MockRemoteSearcher struct {
	mock.Mock
}

func (m *MockRemoteSearcher) QueryChunks(ctx context.Context, vector []float32, topK int) ([]pinecone.Match, error) {
	args := m.Called(ctx, vector, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]pinecone.Match), args.Error(1)
}

// MockChunkSearcher mocks the database-backed vector search
type MockChunkSearcher struct {
	mock.Mock
}

func (m *MockChunkSearcher) SearchByVector(ctx context.Context, embedding []float32, limit int) ([]domain.SearchResult, error) {
	args := m.Called(ctx, embedding, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchResult), args.Error(1)
}

// MockQueryEmbedder mocks the query embedder
type MockQueryEmbedder struct {
	mock.Mock
}

func (m *MockQueryEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func TestSearchService_EmptyQuery(t *testing.T) {
	service := NewSearchService(nil, nil, nil, nil, nil)

	_, err := service.Search(context.Background(), SearchInput{Query: "  "})

	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}

func TestSearchService_InvalidMode(t *testing.T) {
	service := NewSearchService(nil, nil, nil, nil, nil)

	_, err := service.Search(context.Background(), SearchInput{Query: "q", Mode: "fuzzy"})

	assert.ErrorIs(t, err, domain.ErrInvalidSearchMode)
}

func TestSearchService_Lexical(t *testing.T) {
	mockPapers := new(MockSearchPaperRepo)
	service := NewSearchService(mockPapers, nil, nil, nil, nil)

	ctx := context.Background()
	mockPapers.On("SearchLexical", ctx, "dark matter", 5).Return([]domain.SearchResult{
		{PaperID: "p1", Title: "T1", Abstract: "about dark matter halos", Score: 0.8},
	}, nil)

	results, err := service.Search(ctx, SearchInput{Query: "dark matter", Mode: domain.SearchModeLexical, Limit: 5})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.SourceLexical, results[0].Source)
	assert.Equal(t, "about dark matter halos", results[0].Snippet)
	mockPapers.AssertExpectations(t)
}

func TestSearchService_VectorLocal_EnrichesFromRepo(t *testing.T) {
	mockPapers := new(MockSearchPaperRepo)
	mockLocal := new(MockLocalSearcher)
	mockEmbed := new(MockQueryEmbedder)
	service := NewSearchService(mockPapers, mockLocal, nil, mockEmbed, nil)

	ctx := context.Background()
	vec := []float32{0.1, 0.2}
	mockEmbed.On("EmbedQuery", ctx, "exoplanets").Return(vec, nil)
	mockLocal.On("Search", vec, 10).Return([]index.Hit{
		{Score: 0.91, Meta: index.Metadata{ChunkID: "p1_chunk_0", PaperID: "p1", Title: "stale title", Text: "chunk body"}},
	}, nil)
	mockPapers.On("GetByID", ctx, "p1").Return(&domain.Paper{
		ID: "p1", Title: "Fresh Title", Authors: "A. Star", Abstract: "full abstract",
	}, nil)

	results, err := service.Search(ctx, SearchInput{Query: "exoplanets", Mode: domain.SearchModeVectorLocal})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Fresh Title", results[0].Title)
	assert.Equal(t, "A. Star", results[0].Authors)
	assert.Equal(t, "full abstract", results[0].Abstract)
	assert.Equal(t, domain.SourceVectorLocal, results[0].Source)
	assert.InDelta(t, 0.91, results[0].Score, 1e-6)
}

func TestSearchService_VectorLocal_IndexNotInitialized(t *testing.T) {
	mockLocal := new(MockLocalSearcher)
	mockEmbed := new(MockQueryEmbedder)
	service := NewSearchService(nil, mockLocal, nil, mockEmbed, nil)

	ctx := context.Background()
	mockEmbed.On("EmbedQuery", ctx, "q").Return([]float32{1}, nil)
	mockLocal.On("Search", []float32{1}, 10).Return(nil, index.ErrNotInitialized)

	_, err := service.Search(ctx, SearchInput{Query: "q", Mode: domain.SearchModeVectorLocal})

	assert.ErrorIs(t, err, domain.ErrIndexNotInitialized)
}

func TestSearchService_VectorLocal_FallsBackToChunkTable(t *testing.T) {
	mockChunks := new(MockChunkSearcher)
	mockEmbed := new(MockQueryEmbedder)
	service := NewSearchService(nil, nil, nil, mockEmbed, nil).
		WithVectorFallback(mockChunks)

	ctx := context.Background()
	vec := []float32{0.3, 0.4}
	mockEmbed.On("EmbedQuery", ctx, "pulsars").Return(vec, nil)
	mockChunks.On("SearchByVector", ctx, vec, 10).Return([]domain.SearchResult{
		{ChunkID: "p1_chunk_0", PaperID: "p1", Title: "Pulsar Timing", Snippet: "millisecond pulsars", Score: 0.83},
	}, nil)

	results, err := service.Search(ctx, SearchInput{Query: "pulsars", Mode: domain.SearchModeVectorLocal})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p1", results[0].PaperID)
	assert.Equal(t, domain.SourceVectorLocal, results[0].Source)
	mockChunks.AssertExpectations(t)
}

func TestSearchService_VectorLocal_FallbackOnUnbuiltIndex(t *testing.T) {
	mockLocal := new(MockLocalSearcher)
	mockChunks := new(MockChunkSearcher)
	mockEmbed := new(MockQueryEmbedder)
	service := NewSearchService(nil, mockLocal, nil, mockEmbed, nil).
		WithVectorFallback(mockChunks)

	ctx := context.Background()
	mockEmbed.On("EmbedQuery", ctx, "q").Return([]float32{1}, nil)
	mockLocal.On("Search", []float32{1}, 10).Return(nil, index.ErrNotInitialized)
	mockChunks.On("SearchByVector", ctx, []float32{1}, 10).Return([]domain.SearchResult{
		{ChunkID: "p2_chunk_0", PaperID: "p2", Score: 0.5},
	}, nil)

	results, err := service.Search(ctx, SearchInput{Query: "q", Mode: domain.SearchModeVectorLocal})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p2", results[0].PaperID)
}

func TestSearchService_VectorRemote_RecoversPaperIDFromChunkID(t *testing.T) {
	mockRemote := new(MockRemoteSearcher)
	mockEmbed := new(MockQueryEmbedder)
	service := NewSearchService(nil, nil, mockRemote, mockEmbed, nil)

	ctx := context.Background()
	vec := []float32{0.5}
	mockEmbed.On("EmbedQuery", ctx, "q").Return(vec, nil)
	mockRemote.On("QueryChunks", ctx, vec, 10).Return([]pinecone.Match{
		{ID: "2301.04567_chunk_2", Score: 0.77, Metadata: map[string]interface{}{"title": "T", "text": "snippet text"}},
	}, nil)

	results, err := service.Search(ctx, SearchInput{Query: "q", Mode: domain.SearchModeVectorRemote})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "2301.04567", results[0].PaperID)
	assert.Equal(t, domain.SourceVectorRemote, results[0].Source)
}

func TestSearchService_Combined_DeduplicatesByPaper(t *testing.T) {
	mockPapers := new(MockSearchPaperRepo)
	mockLocal := new(MockLocalSearcher)
	mockEmbed := new(MockQueryEmbedder)
	service := NewSearchService(mockPapers, mockLocal, nil, mockEmbed, nil)

	ctx := context.Background()
	vec := []float32{1, 0}
	mockEmbed.On("EmbedQuery", ctx, "quasars").Return(vec, nil)
	mockPapers.On("SearchLexical", ctx, "quasars", 10).Return([]domain.SearchResult{
		{PaperID: "p1", Title: "Quasar Survey", Abstract: "rich abstract", Score: 0.4},
	}, nil)
	mockLocal.On("Search", vec, 10).Return([]index.Hit{
		{Score: 0.9, Meta: index.Metadata{ChunkID: "p1_chunk_0", PaperID: "p1", Title: "Quasar Survey", Text: "chunk"}},
		{Score: 0.5, Meta: index.Metadata{ChunkID: "p2_chunk_0", PaperID: "p2", Title: "Other", Text: "chunk"}},
	}, nil)
	mockPapers.On("GetByID", ctx, "p1").Return(&domain.Paper{ID: "p1", Title: "Quasar Survey", Abstract: "rich abstract"}, nil)
	mockPapers.On("GetByID", ctx, "p2").Return(nil, domain.ErrPaperNotFound)

	results, err := service.Search(ctx, SearchInput{Query: "quasars", Mode: domain.SearchModeCombined})

	require.NoError(t, err)
	require.Len(t, results, 2)
	// p1 appears once with the max of its scores.
	assert.Equal(t, "p1", results[0].PaperID)
	assert.InDelta(t, 0.9, results[0].Score, 1e-6)
	assert.Equal(t, "rich abstract", results[0].Abstract)
	assert.Equal(t, "p2", results[1].PaperID)
}

func TestSearchService_Combined_ToleratesBackendFailure(t *testing.T) {
	mockPapers := new(MockSearchPaperRepo)
	mockLocal := new(MockLocalSearcher)
	mockEmbed := new(MockQueryEmbedder)
	service := NewSearchService(mockPapers, mockLocal, nil, mockEmbed, nil)

	ctx := context.Background()
	vec := []float32{1}
	mockEmbed.On("EmbedQuery", ctx, "q").Return(vec, nil)
	mockPapers.On("SearchLexical", ctx, "q", 10).Return([]domain.SearchResult{
		{PaperID: "p1", Title: "T", Abstract: "a", Score: 0.3},
	}, nil)
	mockLocal.On("Search", vec, 10).Return(nil, errors.New("index corrupted"))

	results, err := service.Search(ctx, SearchInput{Query: "q", Mode: domain.SearchModeCombined})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p1", results[0].PaperID)
}

func TestSearchService_Combined_AllBackendsFail(t *testing.T) {
	mockPapers := new(MockSearchPaperRepo)
	mockEmbed := new(MockQueryEmbedder)
	service := NewSearchService(mockPapers, nil, nil, mockEmbed, nil)

	ctx := context.Background()
	mockEmbed.On("EmbedQuery", ctx, "q").Return([]float32{1}, nil)
	mockPapers.On("SearchLexical", ctx, "q", 10).Return(nil, errors.New("db down"))

	_, err := service.Search(ctx, SearchInput{Query: "q", Mode: domain.SearchModeCombined})

	assert.ErrorIs(t, err, domain.ErrVectorStoreOffline)
}

func TestFinalize_SortsByScoreDescending(t *testing.T) {
	results := finalize([]domain.SearchResult{
		{PaperID: "low", Score: 0.1},
		{PaperID: "high", Score: 0.9},
		{PaperID: "mid", Score: 0.5},
	}, 2)

	require.Len(t, results, 2)
	assert.Equal(t, "high", results[0].PaperID)
	assert.Equal(t, "mid", results[1].PaperID)
}

func TestMakeSnippet(t *testing.T) {
	assert.Equal(t, "", makeSnippet(""))
	assert.Equal(t, "a b c", makeSnippet("a\n b\t c"))

	snippet := makeSnippet(stringOfLen(300))
	assert.Len(t, snippet, defaultSnippetMaxChars)
	assert.True(t, strings.HasSuffix(snippet, "..."))
}

func TestMakeSnippet_MultiByteRunes(t *testing.T) {
	snippet := makeSnippet(strings.Repeat("α", 300))

	assert.True(t, utf8.ValidString(snippet))
	assert.Equal(t, defaultSnippetMaxChars, utf8.RuneCountInString(snippet))
	assert.True(t, strings.HasSuffix(snippet, "..."))
}

func stringOfLen(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'x'
	}
	return string(b)
}
