// Package session tracks the connection lifecycle of each tenant's messaging
// channel.
package session

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/chat-escalation/internal/domain"
	"github.com/spec-kit/chat-escalation/internal/observability"
	"github.com/spec-kit/chat-escalation/internal/relay"
	"github.com/spec-kit/chat-escalation/internal/repository"
	apperrors "github.com/spec-kit/chat-escalation/pkg/util"
)

const lockStripes = 32

// Manager owns the per-tenant connection state machine.
type Manager struct {
	tenants repository.TenantRepository
	relay   relay.Relay
	logger  *zap.Logger
	metrics *observability.Metrics
	locks   [lockStripes]sync.Mutex
}

// Dependencies bundles collaborators for the manager.
type Dependencies struct {
	TenantRepo repository.TenantRepository
	Relay      relay.Relay
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewManager constructs the manager.
func NewManager(deps Dependencies) *Manager {
	return &Manager{
		tenants: deps.TenantRepo,
		relay:   deps.Relay,
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}
}

// allowedTransitions lists forward moves; any state may additionally
// re-enter pending when a fresh connection attempt starts.
var allowedTransitions = map[domain.ConnectionStatus][]domain.ConnectionStatus{
	domain.StatusPending:      {domain.StatusScanned, domain.StatusError},
	domain.StatusScanned:      {domain.StatusReady, domain.StatusError},
	domain.StatusReady:        {domain.StatusError, domain.StatusDisconnected},
	domain.StatusError:        {},
	domain.StatusDisconnected: {},
}

func isValidTransition(current, next domain.ConnectionStatus) bool {
	if next == domain.StatusPending || next == current {
		return true
	}
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Transition applies a connection lifecycle event for the tenant. Updates
// whose occurredAt is not strictly after the stored transition time are
// rejected with STALE_TRANSITION and leave the record unchanged. Returns the
// state the tenant was in before the transition.
func (m *Manager) Transition(ctx context.Context, tenantID string, newState domain.ConnectionStatus, message *string, occurredAt time.Time) (domain.ConnectionStatus, error) {
	if !newState.Valid() {
		return "", apperrors.NewValidationError(fmt.Sprintf("unknown connection status %q", newState), nil)
	}

	lock := m.lockFor(tenantID)
	lock.Lock()
	defer lock.Unlock()

	tenant, err := m.tenants.GetByID(ctx, tenantID)
	if err != nil {
		if repository.IsNotFound(err) {
			return "", apperrors.NewNotFound("tenant", map[string]any{"tenant_id": tenantID})
		}
		return "", err
	}

	previous := tenant.Status
	if !occurredAt.After(tenant.StatusChangedAt) {
		m.metrics.RecordStaleTransition()
		return previous, apperrors.NewStaleTransition(tenantID)
	}
	if !isValidTransition(previous, newState) {
		return previous, apperrors.NewValidationError(
			fmt.Sprintf("invalid status transition %s -> %s", previous, newState), nil)
	}

	connected := newState == domain.StatusReady
	if err := m.tenants.UpdateStatus(ctx, tenantID, newState, message, connected, occurredAt); err != nil {
		if apperrors.IsCode(err, "STALE_TRANSITION") {
			m.metrics.RecordStaleTransition()
		}
		return previous, err
	}

	m.logger.Info("tenant status transition",
		zap.String("tenant_id", tenantID),
		zap.String("from", string(previous)),
		zap.String("to", string(newState)),
		zap.Time("occurred_at", occurredAt))

	if newState == domain.StatusError || newState == domain.StatusDisconnected {
		m.notifyFailure(ctx, tenant, newState, message, occurredAt)
	}
	return previous, nil
}

// IsUsable reports whether the tenant's channel can deliver outbound sends.
// Only the ready state is usable.
func (m *Manager) IsUsable(ctx context.Context, tenantID string) (bool, error) {
	tenant, err := m.tenants.GetByID(ctx, tenantID)
	if err != nil {
		if repository.IsNotFound(err) {
			return false, apperrors.NewNotFound("tenant", map[string]any{"tenant_id": tenantID})
		}
		return false, err
	}
	return tenant.Status == domain.StatusReady, nil
}

// notifyFailure sends one best-effort notification describing the failure.
// Relay errors are logged, never retried here; the caller may restart the
// whole lifecycle.
func (m *Manager) notifyFailure(ctx context.Context, tenant *domain.Tenant, state domain.ConnectionStatus, message *string, occurredAt time.Time) {
	if tenant.ChannelAddress == "" {
		return
	}
	reason := "no details"
	if message != nil && *message != "" {
		reason = *message
	}
	text := fmt.Sprintf("Channel for %s is %s since %s: %s",
		tenant.Name, state, occurredAt.Format(time.RFC3339), reason)
	if err := m.relay.Send(ctx, tenant.ChannelAddress, text); err != nil {
		m.metrics.RecordRelayFailure()
		m.logger.Warn("failure notification not delivered",
			zap.String("tenant_id", tenant.ID),
			zap.Error(err))
	}
}

func (m *Manager) lockFor(tenantID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(tenantID))
	return &m.locks[h.Sum32()%lockStripes]
}
