package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/chat-escalation/internal/domain"
)

// ConversationRepository encapsulates conversation persistence.
type ConversationRepository interface {
	// FindOrCreate returns the conversation for (tenant, counterpart),
	// creating it when absent. Concurrent calls for the same pair resolve
	// to the same row.
	FindOrCreate(ctx context.Context, tenantID, counterpartID string) (*domain.Conversation, error)
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	ListCreatedBetween(ctx context.Context, tenantID string, from, to time.Time) ([]domain.Conversation, error)
	SetClosed(ctx context.Context, id string, closed bool) error
	SetNeedsReview(ctx context.Context, id string, needsReview bool) error
}

type conversationRepository struct {
	pool *pgxpool.Pool
}

// NewConversationRepository instantiates repository.
func NewConversationRepository(pool *pgxpool.Pool) ConversationRepository {
	return &conversationRepository{pool: pool}
}

func (r *conversationRepository) FindOrCreate(ctx context.Context, tenantID, counterpartID string) (*domain.Conversation, error) {
	const query = `
        INSERT INTO conversations (tenant_id, counterpart_id)
        VALUES ($1,$2)
        ON CONFLICT (tenant_id, counterpart_id)
            DO UPDATE SET counterpart_id = EXCLUDED.counterpart_id
        RETURNING id, tenant_id, counterpart_id, closed, needs_review, created_at`
	var conv domain.Conversation
	if err := r.pool.QueryRow(ctx, query, tenantID, counterpartID).Scan(
		&conv.ID,
		&conv.TenantID,
		&conv.CounterpartID,
		&conv.Closed,
		&conv.NeedsReview,
		&conv.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	const query = `
        SELECT id, tenant_id, counterpart_id, closed, needs_review, created_at
        FROM conversations WHERE id=$1`
	var conv domain.Conversation
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&conv.ID,
		&conv.TenantID,
		&conv.CounterpartID,
		&conv.Closed,
		&conv.NeedsReview,
		&conv.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) ListCreatedBetween(ctx context.Context, tenantID string, from, to time.Time) ([]domain.Conversation, error) {
	const query = `
        SELECT id, tenant_id, counterpart_id, closed, needs_review, created_at
        FROM conversations
        WHERE tenant_id=$1 AND created_at >= $2 AND created_at < $3
        ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		if err := rows.Scan(
			&conv.ID,
			&conv.TenantID,
			&conv.CounterpartID,
			&conv.Closed,
			&conv.NeedsReview,
			&conv.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, conv)
	}
	return result, rows.Err()
}

func (r *conversationRepository) SetClosed(ctx context.Context, id string, closed bool) error {
	return r.setFlag(ctx, `UPDATE conversations SET closed=$1 WHERE id=$2`, id, closed)
}

func (r *conversationRepository) SetNeedsReview(ctx context.Context, id string, needsReview bool) error {
	return r.setFlag(ctx, `UPDATE conversations SET needs_review=$1 WHERE id=$2`, id, needsReview)
}

func (r *conversationRepository) setFlag(ctx context.Context, query, id string, value bool) error {
	cmd, err := r.pool.Exec(ctx, query, value, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
