package domain

import (
	"fmt"
	"time"
)

// MessageType represents the author role of a conversation message
type MessageType string

const (
	MessageTypeUser      MessageType = "user"
	MessageTypeAssistant MessageType = "assistant"
)

// Conversation represents a chat session. Title is derived from the first
// user query, truncated to 100 characters.
type Conversation struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message represents one turn in a conversation. Sources carries the
// retrieval citations attached to assistant turns.
type Message struct {
	ID             int64
	ConversationID string
	Type           MessageType
	Content        string
	Sources        []SourceRef
	TokensUsed     int
	CreatedAt      time.Time
}

// SourceRef is a citation pointing at a retrieved paper.
type SourceRef struct {
	PaperID string  `json:"paper_id"`
	Title   string  `json:"title"`
	Authors string  `json:"authors,omitempty"`
	Score   float64 `json:"score"`
	Source  string  `json:"source,omitempty"`
}

// ConversationStats summarizes a conversation for the stats endpoint.
type ConversationStats struct {
	ConversationID    string
	MessageCount      int
	UserMessages      int
	AssistantMessages int
	TotalTokens       int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ValidateMessage validates a Message instance
func ValidateMessage(m *Message) error {
	if m == nil {
		return fmt.Errorf("message cannot be nil")
	}

	if m.ConversationID == "" {
		return fmt.Errorf("message ConversationID is required")
	}

	if m.Content == "" {
		return fmt.Errorf("message Content is required")
	}

	if !isValidMessageType(m.Type) {
		return fmt.Errorf("message Type is invalid: %s", m.Type)
	}

	return nil
}

// isValidMessageType checks if a MessageType is valid
func isValidMessageType(t MessageType) bool {
	switch t {
	case MessageTypeUser, MessageTypeAssistant:
		return true
	}
	return false
}

// TruncateTitle derives a conversation title from the first user query.
func TruncateTitle(query string) string {
	const maxTitle = 100
	r := []rune(query)
	if len(r) <= maxTitle {
		return query
	}
	return string(r[:maxTitle])
}
