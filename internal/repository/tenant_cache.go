package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/chat-escalation/internal/domain"
)

// CachedTenantRepository decorates a TenantRepository with a Redis
// read-through cache. Tenant config is read on every inbound message, so
// lookups are cached with a short TTL and invalidated on every mutation.
//
// Invalidation is best-effort: a GetByID that loaded the row just before a
// concurrent mutation can re-populate the cache with the pre-mutation value
// after the invalidation ran. Readers may therefore observe a tenant up to
// one TTL stale; callers that cannot tolerate that must query the inner
// repository directly.
type CachedTenantRepository struct {
	inner  TenantRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedTenantRepository wraps inner with a Redis cache. A nil client
// disables caching and delegates directly.
func NewCachedTenantRepository(inner TenantRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedTenantRepository {
	return &CachedTenantRepository{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (r *CachedTenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	if r.client != nil {
		raw, err := r.client.Get(ctx, tenantCacheKey(id)).Bytes()
		if err == nil {
			var tenant domain.Tenant
			if err := json.Unmarshal(raw, &tenant); err == nil {
				return &tenant, nil
			}
		} else if err != redis.Nil {
			r.logger.Debug("tenant cache read failed", zap.String("tenant_id", id), zap.Error(err))
		}
	}

	tenant, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, tenant)
	return tenant, nil
}

func (r *CachedTenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	return r.inner.Create(ctx, tenant)
}

func (r *CachedTenantRepository) Update(ctx context.Context, tenant *domain.Tenant) error {
	if err := r.inner.Update(ctx, tenant); err != nil {
		return err
	}
	r.invalidate(ctx, tenant.ID)
	return nil
}

func (r *CachedTenantRepository) List(ctx context.Context) ([]domain.Tenant, error) {
	return r.inner.List(ctx)
}

func (r *CachedTenantRepository) UpdateStatus(ctx context.Context, id string, status domain.ConnectionStatus, message *string, connected bool, occurredAt time.Time) error {
	if err := r.inner.UpdateStatus(ctx, id, status, message, connected, occurredAt); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *CachedTenantRepository) store(ctx context.Context, tenant *domain.Tenant) {
	if r.client == nil || tenant == nil {
		return
	}
	raw, err := json.Marshal(tenant)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, tenantCacheKey(tenant.ID), raw, r.ttl).Err(); err != nil {
		r.logger.Debug("tenant cache write failed", zap.String("tenant_id", tenant.ID), zap.Error(err))
	}
}

func (r *CachedTenantRepository) invalidate(ctx context.Context, id string) {
	if r.client == nil {
		return
	}
	if err := r.client.Del(ctx, tenantCacheKey(id)).Err(); err != nil {
		r.logger.Debug("tenant cache invalidation failed", zap.String("tenant_id", id), zap.Error(err))
	}
}

func tenantCacheKey(id string) string {
	return "tenant:" + id
}
