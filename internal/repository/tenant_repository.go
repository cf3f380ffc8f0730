package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/chat-escalation/internal/domain"
	apperrors "github.com/spec-kit/chat-escalation/pkg/util"
)

const tenantColumns = `id, name, channel_address, response_deadline_minutes,
       working_hours_start, working_hours_end, tz_offset_minutes,
       status, status_message, status_changed_at, connected, created_at, updated_at`

// TenantRepository encapsulates tenant persistence.
type TenantRepository interface {
	Create(ctx context.Context, tenant *domain.Tenant) error
	Update(ctx context.Context, tenant *domain.Tenant) error
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	List(ctx context.Context) ([]domain.Tenant, error)
	// UpdateStatus persists a connection-status transition. Updates whose
	// occurredAt is not strictly after the stored status_changed_at are
	// rejected with a STALE_TRANSITION error.
	UpdateStatus(ctx context.Context, id string, status domain.ConnectionStatus, message *string, connected bool, occurredAt time.Time) error
}

type tenantRepository struct {
	pool *pgxpool.Pool
}

// NewTenantRepository instantiates repository.
func NewTenantRepository(pool *pgxpool.Pool) TenantRepository {
	return &tenantRepository{pool: pool}
}

func (r *tenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	const query = `
        INSERT INTO tenants (name, channel_address, response_deadline_minutes,
            working_hours_start, working_hours_end, tz_offset_minutes, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, status_changed_at, created_at, updated_at`
	if tenant.Status == "" {
		tenant.Status = domain.StatusPending
	}
	return r.pool.QueryRow(ctx, query,
		tenant.Name,
		tenant.ChannelAddress,
		tenant.ResponseDeadlineMinutes,
		tenant.WorkingHoursStart,
		tenant.WorkingHoursEnd,
		tenant.TZOffsetMinutes,
		tenant.Status,
	).Scan(&tenant.ID, &tenant.StatusChangedAt, &tenant.CreatedAt, &tenant.UpdatedAt)
}

func (r *tenantRepository) Update(ctx context.Context, tenant *domain.Tenant) error {
	const query = `
        UPDATE tenants SET name=$1, channel_address=$2, response_deadline_minutes=$3,
            working_hours_start=$4, working_hours_end=$5, tz_offset_minutes=$6, updated_at=NOW()
        WHERE id=$7`
	cmd, err := r.pool.Exec(ctx, query,
		tenant.Name,
		tenant.ChannelAddress,
		tenant.ResponseDeadlineMinutes,
		tenant.WorkingHoursStart,
		tenant.WorkingHoursEnd,
		tenant.TZOffsetMinutes,
		tenant.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *tenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id=$1`
	var tenant domain.Tenant
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.ChannelAddress,
		&tenant.ResponseDeadlineMinutes,
		&tenant.WorkingHoursStart,
		&tenant.WorkingHoursEnd,
		&tenant.TZOffsetMinutes,
		&tenant.Status,
		&tenant.StatusMessage,
		&tenant.StatusChangedAt,
		&tenant.Connected,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *tenantRepository) List(ctx context.Context) ([]domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Tenant
	for rows.Next() {
		var tenant domain.Tenant
		if err := rows.Scan(
			&tenant.ID,
			&tenant.Name,
			&tenant.ChannelAddress,
			&tenant.ResponseDeadlineMinutes,
			&tenant.WorkingHoursStart,
			&tenant.WorkingHoursEnd,
			&tenant.TZOffsetMinutes,
			&tenant.Status,
			&tenant.StatusMessage,
			&tenant.StatusChangedAt,
			&tenant.Connected,
			&tenant.CreatedAt,
			&tenant.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, tenant)
	}
	return result, rows.Err()
}

func (r *tenantRepository) UpdateStatus(ctx context.Context, id string, status domain.ConnectionStatus, message *string, connected bool, occurredAt time.Time) error {
	const query = `
        UPDATE tenants SET status=$1, status_message=$2, connected=$3, status_changed_at=$4, updated_at=NOW()
        WHERE id=$5 AND status_changed_at < $4`
	cmd, err := r.pool.Exec(ctx, query, status, message, connected, occurredAt, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		// Distinguish a missing tenant from an out-of-order update.
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tenants WHERE id=$1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return pgx.ErrNoRows
		}
		return apperrors.NewStaleTransition(id)
	}
	return nil
}

// IsNotFound reports whether err is the repository's missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
