package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/helioscope-ai/helioscope/internal/api"
	"github.com/helioscope-ai/helioscope/internal/domain"
	"github.com/helioscope-ai/helioscope/internal/service"
)

type ChatService interface {
	Chat(ctx context.Context, input service.ChatInput) (*service.ChatOutput, error)
}

type ConversationReader interface {
	History(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
	Stats(ctx context.Context, conversationID string) (*domain.ConversationStats, error)
}

type ChatHandler struct {
	svc           ChatService
	conversations ConversationReader
}

func NewChatHandler(svc ChatService, conversations ConversationReader) *ChatHandler {
	return &ChatHandler{svc: svc, conversations: conversations}
}

type ChatRequest struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
	Mode           string `json:"mode"`
	TopK           int    `json:"top_k"`
}

type ChatResponse struct {
	ConversationID string             `json:"conversation_id"`
	Answer         string             `json:"answer"`
	Sources        []domain.SourceRef `json:"sources,omitempty"`
	GateReason     string             `json:"gate_reason,omitempty"`
	Grounded       bool               `json:"grounded"`
	Degraded       bool               `json:"degraded,omitempty"`
	TokensUsed     int                `json:"tokens_used,omitempty"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	mode := domain.SearchModeCombined
	if req.Mode != "" {
		mode = domain.SearchMode(req.Mode)
		if !domain.IsValidSearchMode(mode) {
			api.Error(w, http.StatusBadRequest, "invalid search mode")
			return
		}
	}

	output, err := h.svc.Chat(r.Context(), service.ChatInput{
		ConversationID: req.ConversationID,
		Query:          req.Query,
		Mode:           mode,
		TopK:           req.TopK,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ChatResponse{
		ConversationID: output.ConversationID,
		Answer:         output.Answer,
		Sources:        output.Sources,
		GateReason:     output.GateReason,
		Grounded:       output.Grounded,
		Degraded:       output.Degraded,
		TokensUsed:     output.TokensUsed,
	})
}

type MessageResponse struct {
	ID         int64              `json:"id"`
	Type       string             `json:"type"`
	Content    string             `json:"content"`
	Sources    []domain.SourceRef `json:"sources,omitempty"`
	TokensUsed int                `json:"tokens_used,omitempty"`
	CreatedAt  string             `json:"created_at"`
}

type HistoryResponse struct {
	ConversationID string             `json:"conversation_id"`
	Messages       []*MessageResponse `json:"messages"`
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	messages, err := h.conversations.History(r.Context(), id, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*MessageResponse, len(messages))
	for i, m := range messages {
		responses[i] = &MessageResponse{
			ID:         m.ID,
			Type:       string(m.Type),
			Content:    m.Content,
			Sources:    m.Sources,
			TokensUsed: m.TokensUsed,
			CreatedAt:  m.CreatedAt.Format(time.RFC3339),
		}
	}

	api.Success(w, http.StatusOK, HistoryResponse{
		ConversationID: id,
		Messages:       responses,
	})
}

type ConversationStatsResponse struct {
	ConversationID    string `json:"conversation_id"`
	MessageCount      int    `json:"message_count"`
	UserMessages      int    `json:"user_messages"`
	AssistantMessages int    `json:"assistant_messages"`
	TotalTokens       int    `json:"total_tokens"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

func (h *ChatHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	stats, err := h.conversations.Stats(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ConversationStatsResponse{
		ConversationID:    stats.ConversationID,
		MessageCount:      stats.MessageCount,
		UserMessages:      stats.UserMessages,
		AssistantMessages: stats.AssistantMessages,
		TotalTokens:       stats.TotalTokens,
		CreatedAt:         stats.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         stats.UpdatedAt.Format(time.RFC3339),
	})
}
