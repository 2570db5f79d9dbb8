package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/helioscope-ai/helioscope/internal/domain"
)

// promptHistoryTurns bounds how many past turns go into the LLM prompt.
const promptHistoryTurns = 10

// ConversationRepository defines the repository interface for conversations
type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	AppendMessage(ctx context.Context, msg *domain.Message) error
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
	Stats(ctx context.Context, conversationID string) (*domain.ConversationStats, error)
}

// ConversationService manages chat sessions and their message history
type ConversationService struct {
	repo ConversationRepository
}

// NewConversationService creates a new ConversationService instance
func NewConversationService(repo ConversationRepository) *ConversationService {
	return &ConversationService{repo: repo}
}

// Ensure returns the conversation with the given id, or creates a new one
// titled after the first query when id is empty.
func (s *ConversationService) Ensure(ctx context.Context, id, firstQuery string) (*domain.Conversation, error) {
	if id != "" {
		return s.repo.GetByID(ctx, id)
	}

	now := time.Now().UTC()
	conv := &domain.Conversation{
		ID:        uuid.NewString(),
		Title:     domain.TruncateTitle(firstQuery),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// AppendUser persists a user turn.
func (s *ConversationService) AppendUser(ctx context.Context, conversationID, content string) error {
	msg := &domain.Message{
		ConversationID: conversationID,
		Type:           domain.MessageTypeUser,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := domain.ValidateMessage(msg); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid message", err)
	}
	return s.repo.AppendMessage(ctx, msg)
}

// AppendAssistant persists an assistant turn with its citations and token
// usage.
func (s *ConversationService) AppendAssistant(ctx context.Context, conversationID, content string, sources []domain.SourceRef, tokensUsed int) error {
	msg := &domain.Message{
		ConversationID: conversationID,
		Type:           domain.MessageTypeAssistant,
		Content:        content,
		Sources:        sources,
		TokensUsed:     tokensUsed,
		CreatedAt:      time.Now().UTC(),
	}
	if err := domain.ValidateMessage(msg); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid message", err)
	}
	return s.repo.AppendMessage(ctx, msg)
}

// History returns the most recent limit messages in chronological order.
func (s *ConversationService) History(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.RecentMessages(ctx, conversationID, limit)
}

// Stats summarizes a conversation.
func (s *ConversationService) Stats(ctx context.Context, conversationID string) (*domain.ConversationStats, error) {
	return s.repo.Stats(ctx, conversationID)
}

// FormatForPrompt renders the last turns as prompt context. Returns an
// empty string for a fresh conversation.
func FormatForPrompt(messages []domain.Message) string {
	if len(messages) == 0 {
		return ""
	}
	if len(messages) > promptHistoryTurns {
		messages = messages[len(messages)-promptHistoryTurns:]
	}

	var b strings.Builder
	b.WriteString("CONVERSATION HISTORY:\n")
	for _, m := range messages {
		switch m.Type {
		case domain.MessageTypeUser:
			b.WriteString("User: ")
		case domain.MessageTypeAssistant:
			b.WriteString("Assistant: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}
