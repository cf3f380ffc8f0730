package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/chat-escalation/internal/domain"
)

// MessageRepository encapsulates append-only message persistence.
type MessageRepository interface {
	Append(ctx context.Context, conversationID string, direction domain.MessageDirection, body string, occurredAt time.Time) (*domain.Message, error)
	ListByConversations(ctx context.Context, conversationIDs []string, from, to time.Time) ([]domain.Message, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository instantiates repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Append(ctx context.Context, conversationID string, direction domain.MessageDirection, body string, occurredAt time.Time) (*domain.Message, error) {
	const query = `
        INSERT INTO messages (conversation_id, direction, body, created_at)
        VALUES ($1,$2,$3,$4)
        RETURNING id`
	msg := &domain.Message{
		ConversationID: conversationID,
		Direction:      direction,
		Body:           body,
		CreatedAt:      occurredAt,
	}
	if err := r.pool.QueryRow(ctx, query, conversationID, direction, body, occurredAt).Scan(&msg.ID); err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *messageRepository) ListByConversations(ctx context.Context, conversationIDs []string, from, to time.Time) ([]domain.Message, error) {
	if len(conversationIDs) == 0 {
		return nil, nil
	}
	const query = `
        SELECT id, conversation_id, direction, body, created_at
        FROM messages
        WHERE conversation_id = ANY($1) AND created_at >= $2 AND created_at < $3
        ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, conversationIDs, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Direction,
			&msg.Body,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
