package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/helioscope-ai/helioscope/internal/api/handlers"
	"github.com/helioscope-ai/helioscope/internal/domain"
	"github.com/helioscope-ai/helioscope/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPaperService struct {
	mock.Mock
}

func (m *MockPaperService) Ingest(ctx context.Context, input service.IngestInput) (*domain.Paper, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Paper), args.Error(1)
}

func (m *MockPaperService) GetByID(ctx context.Context, id string) (*domain.Paper, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Paper), args.Error(1)
}

func (m *MockPaperService) Update(ctx context.Context, input service.IngestInput) (*domain.Paper, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Paper), args.Error(1)
}

func (m *MockPaperService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPaperService) ListPapers(ctx context.Context, input service.ListPapersInput) (*service.ListPapersOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListPapersOutput), args.Error(1)
}

func (m *MockPaperService) CorpusStats(ctx context.Context) (*domain.CorpusStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CorpusStats), args.Error(1)
}

type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) Search(ctx context.Context, input service.SearchInput) ([]domain.SearchResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchResult), args.Error(1)
}

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) Chat(ctx context.Context, input service.ChatInput) (*service.ChatOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChatOutput), args.Error(1)
}

type MockConversationReader struct {
	mock.Mock
}

func (m *MockConversationReader) History(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, conversationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Message), args.Error(1)
}

func (m *MockConversationReader) Stats(ctx context.Context, conversationID string) (*domain.ConversationStats, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConversationStats), args.Error(1)
}

func setupRouter() (http.Handler, *MockPaperService, *MockSearchService, *MockChatService, *MockConversationReader) {
	paperSvc := new(MockPaperService)
	searchSvc := new(MockSearchService)
	chatSvc := new(MockChatService)
	convReader := new(MockConversationReader)

	cfg := RouterConfig{
		PaperHandler:  handlers.NewPaperHandler(paperSvc),
		SearchHandler: handlers.NewSearchHandler(searchSvc),
		ChatHandler:   handlers.NewChatHandler(chatSvc, convReader),
	}

	router := NewRouter(cfg)
	return router, paperSvc, searchSvc, chatSvc, convReader
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _, _, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_GetPaper(t *testing.T) {
	router, paperSvc, _, _, _ := setupRouter()

	expected := &domain.Paper{
		ID:        "2301.00001",
		Title:     "Spectroscopy of Hot Jupiters",
		Authors:   "L. Marek",
		Abstract:  "We survey transmission spectra.",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	paperSvc.On("GetByID", mock.Anything, "2301.00001").Return(expected, nil)

	req := httptest.NewRequest(http.MethodGet, "/papers/2301.00001", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	paperSvc.AssertExpectations(t)
}

func TestRouter_GetPaper_NotFound(t *testing.T) {
	router, paperSvc, _, _, _ := setupRouter()

	paperSvc.On("GetByID", mock.Anything, "9999.99999").Return(nil, domain.ErrPaperNotFound)

	req := httptest.NewRequest(http.MethodGet, "/papers/9999.99999", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_Search(t *testing.T) {
	router, _, searchSvc, _, _ := setupRouter()

	results := []domain.SearchResult{
		{PaperID: "2301.00001", Title: "Solar Flare Prediction", Score: 0.91, Source: domain.SourceVectorLocal},
	}
	searchSvc.On("Search", mock.Anything, mock.MatchedBy(func(input service.SearchInput) bool {
		return input.Query == "solar flares" && input.Mode == domain.SearchModeCombined
	})).Return(results, nil)

	body := strings.NewReader(`{"query": "solar flares"}`)
	req := httptest.NewRequest(http.MethodPost, "/search", body)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	searchSvc.AssertExpectations(t)
}

func TestRouter_Search_InvalidMode(t *testing.T) {
	router, _, _, _, _ := setupRouter()

	body := strings.NewReader(`{"query": "solar flares", "mode": "telepathic"}`)
	req := httptest.NewRequest(http.MethodPost, "/search", body)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_Chat(t *testing.T) {
	router, _, _, chatSvc, _ := setupRouter()

	output := &service.ChatOutput{
		ConversationID: "conv-1",
		Answer:         "## Key Findings\nFlares correlate with active regions [1].",
		Sources:        []domain.SourceRef{{PaperID: "2301.00001", Title: "Solar Flare Prediction", Score: 0.91}},
		Grounded:       true,
		TokensUsed:     250,
	}
	chatSvc.On("Chat", mock.Anything, mock.MatchedBy(func(input service.ChatInput) bool {
		return input.Query == "what drives solar flares?"
	})).Return(output, nil)

	body := strings.NewReader(`{"query": "what drives solar flares?"}`)
	req := httptest.NewRequest(http.MethodPost, "/chat", body)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data handlers.ChatResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "conv-1", resp.Data.ConversationID)
	assert.True(t, resp.Data.Grounded)
	chatSvc.AssertExpectations(t)
}

func TestRouter_ChatHistory(t *testing.T) {
	router, _, _, _, convReader := setupRouter()

	messages := []domain.Message{
		{ID: 1, ConversationID: "conv-1", Type: domain.MessageTypeUser, Content: "hi", CreatedAt: time.Now().UTC()},
	}
	convReader.On("History", mock.Anything, "conv-1", 0).Return(messages, nil)

	req := httptest.NewRequest(http.MethodGet, "/chat/history/conv-1", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	convReader.AssertExpectations(t)
}

func TestRouter_ChatStats_NotFound(t *testing.T) {
	router, _, _, _, convReader := setupRouter()

	convReader.On("Stats", mock.Anything, "missing").Return(nil, domain.ErrConversationNotFound)

	req := httptest.NewRequest(http.MethodGet, "/chat/stats/missing", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_CorpusStats(t *testing.T) {
	router, paperSvc, _, _, _ := setupRouter()

	stats := &domain.CorpusStats{PaperCount: 12, ChunkCount: 88, EmbeddedPapers: 10, ConversationCount: 3, PendingJobs: 2}
	paperSvc.On("CorpusStats", mock.Anything).Return(stats, nil)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data domain.CorpusStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 12, resp.Data.PaperCount)
	paperSvc.AssertExpectations(t)
}
