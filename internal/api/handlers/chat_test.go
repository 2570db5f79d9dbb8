package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/helioscope-ai/helioscope/internal/domain"
	"github.com/helioscope-ai/helioscope/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

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

func TestChatHandler_Chat_Success(t *testing.T) {
	mockSvc := new(MockChatService)
	mockConv := new(MockConversationReader)
	handler := NewChatHandler(mockSvc, mockConv)

	output := &service.ChatOutput{
		ConversationID: "conv-42",
		Answer:         "## Key Findings\nM dwarf flares are frequent [1].",
		Sources: []domain.SourceRef{
			{PaperID: "2301.00003", Title: "Flare Rates on M Dwarfs", Score: 0.88, Source: domain.SourceVectorRemote},
		},
		Grounded:   true,
		TokensUsed: 412,
	}
	mockSvc.On("Chat", mock.Anything, service.ChatInput{
		ConversationID: "conv-42",
		Query:          "how often do M dwarfs flare?",
		Mode:           domain.SearchModeCombined,
	}).Return(output, nil)

	body := `{"conversation_id":"conv-42","query":"how often do M dwarfs flare?"}`
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Chat(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data ChatResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "conv-42", resp.Data.ConversationID)
	assert.True(t, resp.Data.Grounded)
	require.Len(t, resp.Data.Sources, 1)
	assert.Equal(t, "2301.00003", resp.Data.Sources[0].PaperID)
	mockSvc.AssertExpectations(t)
}

func TestChatHandler_Chat_EmptyQuery(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc, new(MockConversationReader))

	body := `{"query":""}`
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Chat(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything)
}

func TestChatHandler_Chat_GatedQuery(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc, new(MockConversationReader))

	// Off-topic queries still return 200 with the refusal text and a reason.
	output := &service.ChatOutput{
		ConversationID: "conv-7",
		Answer:         "I can only answer questions about the astronomy research corpus.",
		GateReason:     "keyword:recipe",
	}
	mockSvc.On("Chat", mock.Anything, mock.Anything).Return(output, nil)

	body := `{"query":"best lasagna recipe"}`
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Chat(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data ChatResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "keyword:recipe", resp.Data.GateReason)
	assert.False(t, resp.Data.Grounded)
}

func TestChatHandler_Chat_LLMUnavailable(t *testing.T) {
	mockSvc := new(MockChatService)
	handler := NewChatHandler(mockSvc, new(MockConversationReader))

	mockSvc.On("Chat", mock.Anything, mock.Anything).Return(nil, domain.ErrLLMUnavailable)

	body := `{"query":"what is a pulsar?"}`
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Chat(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestChatHandler_History_Success(t *testing.T) {
	mockConv := new(MockConversationReader)
	handler := NewChatHandler(new(MockChatService), mockConv)

	now := time.Now().UTC()
	messages := []domain.Message{
		{ID: 1, ConversationID: "conv-42", Type: domain.MessageTypeUser, Content: "what is a pulsar?", CreatedAt: now},
		{ID: 2, ConversationID: "conv-42", Type: domain.MessageTypeAssistant, Content: "A rotating neutron star [1].", TokensUsed: 105, CreatedAt: now},
	}
	mockConv.On("History", mock.Anything, "conv-42", 0).Return(messages, nil)

	req := requestWithID(http.MethodGet, "/chat/history/conv-42", "conv-42", nil)
	w := httptest.NewRecorder()

	handler.History(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data HistoryResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Messages, 2)
	assert.Equal(t, "user", resp.Data.Messages[0].Type)
	assert.Equal(t, "assistant", resp.Data.Messages[1].Type)
	mockConv.AssertExpectations(t)
}

func TestChatHandler_History_WithLimit(t *testing.T) {
	mockConv := new(MockConversationReader)
	handler := NewChatHandler(new(MockChatService), mockConv)

	mockConv.On("History", mock.Anything, "conv-42", 5).Return([]domain.Message{}, nil)

	req := requestWithID(http.MethodGet, "/chat/history/conv-42?limit=5", "conv-42", nil)
	w := httptest.NewRecorder()

	handler.History(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockConv.AssertExpectations(t)
}

func TestChatHandler_Stats_Success(t *testing.T) {
	mockConv := new(MockConversationReader)
	handler := NewChatHandler(new(MockChatService), mockConv)

	now := time.Now().UTC()
	stats := &domain.ConversationStats{
		ConversationID:    "conv-42",
		MessageCount:      6,
		UserMessages:      3,
		AssistantMessages: 3,
		TotalTokens:       1200,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	mockConv.On("Stats", mock.Anything, "conv-42").Return(stats, nil)

	req := requestWithID(http.MethodGet, "/chat/stats/conv-42", "conv-42", nil)
	w := httptest.NewRecorder()

	handler.Stats(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data ConversationStatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 6, resp.Data.MessageCount)
	assert.Equal(t, 1200, resp.Data.TotalTokens)
	mockConv.AssertExpectations(t)
}

func TestChatHandler_Stats_NotFound(t *testing.T) {
	mockConv := new(MockConversationReader)
	handler := NewChatHandler(new(MockChatService), mockConv)

	mockConv.On("Stats", mock.Anything, "missing").Return(nil, domain.ErrConversationNotFound)

	req := requestWithID(http.MethodGet, "/chat/stats/missing", "missing", nil)
	w := httptest.NewRecorder()

	handler.Stats(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
