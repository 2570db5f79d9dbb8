package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/helioscope-ai/helioscope/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConversationRepository struct {
	db dbtx
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: pool}
}

func NewConversationRepositoryWithTx(tx pgx.Tx) *ConversationRepository {
	return &ConversationRepository{db: tx}
}

func (r *ConversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO conversations (id, title, created_at, updated_at)
		 VALUES ($1, $2, $3, $4)`,
		conv.ID, conv.Title, conv.CreatedAt, conv.UpdatedAt,
	)
	return err
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.QueryRow(ctx,
		`SELECT id, title, created_at, updated_at FROM conversations WHERE id = $1`,
		id,
	).Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// AppendMessage inserts a message and bumps the conversation's updated_at.
func (r *ConversationRepository) AppendMessage(ctx context.Context, msg *domain.Message) error {
	var sourcesJSON []byte
	if len(msg.Sources) > 0 {
		var err error
		sourcesJSON, err = json.Marshal(msg.Sources)
		if err != nil {
			return err
		}
	}

	err := r.db.QueryRow(ctx,
		`INSERT INTO conversation_messages (conversation_id, type, content, sources, tokens_used, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		msg.ConversationID, msg.Type, msg.Content, sourcesJSON, msg.TokensUsed, msg.CreatedAt,
	).Scan(&msg.ID)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx,
		`UPDATE conversations SET updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), msg.ConversationID,
	)
	return err
}

// RecentMessages returns the last limit messages in chronological order.
func (r *ConversationRepository) RecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, conversation_id, type, content, sources, tokens_used, created_at
		 FROM conversation_messages
		 WHERE conversation_id = $1
		 ORDER BY id DESC
		 LIMIT $2`,
		conversationID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		var sourcesJSON []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Type, &m.Content, &sourcesJSON, &m.TokensUsed, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(sourcesJSON) > 0 {
			if err := json.Unmarshal(sourcesJSON, &m.Sources); err != nil {
				return nil, err
			}
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows come back newest-first; callers want chronological.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *ConversationRepository) Stats(ctx context.Context, conversationID string) (*domain.ConversationStats, error) {
	conv, err := r.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	stats := domain.ConversationStats{
		ConversationID: conversationID,
		CreatedAt:      conv.CreatedAt,
		UpdatedAt:      conv.UpdatedAt,
	}
	err = r.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE type = 'user'),
		        COUNT(*) FILTER (WHERE type = 'assistant'),
		        COALESCE(SUM(tokens_used), 0)
		 FROM conversation_messages
		 WHERE conversation_id = $1`,
		conversationID,
	).Scan(&stats.MessageCount, &stats.UserMessages, &stats.AssistantMessages, &stats.TotalTokens)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
