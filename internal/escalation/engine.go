// Package escalation arms, resets and fires per-conversation response
// deadlines, notifying the tenant's channel when an agent misses one.
package escalation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/chat-escalation/internal/domain"
	"github.com/spec-kit/chat-escalation/internal/observability"
	"github.com/spec-kit/chat-escalation/internal/relay"
	"github.com/spec-kit/chat-escalation/internal/repository"
	"github.com/spec-kit/chat-escalation/internal/workhours"
	apperrors "github.com/spec-kit/chat-escalation/pkg/util"
)

const expiryTimeout = 15 * time.Second

// StatusChecker reports whether a tenant's channel can deliver sends.
// Satisfied by session.Manager.
type StatusChecker interface {
	IsUsable(ctx context.Context, tenantID string) (bool, error)
}

// Engine consumes message events and owns the deadline timer registry.
type Engine struct {
	tenants       repository.TenantRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	status        StatusChecker
	relay         relay.Relay
	registry      *Registry
	logger        *zap.Logger
	metrics       *observability.Metrics
	now           func() time.Time
}

// EngineDependencies bundles collaborators for the engine.
type EngineDependencies struct {
	TenantRepo       repository.TenantRepository
	ConversationRepo repository.ConversationRepository
	MessageRepo      repository.MessageRepository
	Status           StatusChecker
	Relay            relay.Relay
	Logger           *zap.Logger
	Metrics          *observability.Metrics
}

// NewEngine constructs the engine with an empty timer registry.
func NewEngine(deps EngineDependencies) *Engine {
	return &Engine{
		tenants:       deps.TenantRepo,
		conversations: deps.ConversationRepo,
		messages:      deps.MessageRepo,
		status:        deps.Status,
		relay:         deps.Relay,
		registry:      NewRegistry(),
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		now:           time.Now,
	}
}

// Registry exposes the active-timer set for inspection.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Stop drains every armed timer. Called on shutdown.
func (e *Engine) Stop() {
	e.registry.Stop()
}

// OnInboundMessage records a customer message and (re)arms the conversation's
// deadline timer when the tenant is inside working hours. Outside working
// hours no clock is started and any existing timer is left untouched. Only
// storage errors propagate to the caller.
func (e *Engine) OnInboundMessage(ctx context.Context, tenantID, counterpartID, text string, occurredAt time.Time) error {
	tenant, err := e.tenants.GetByID(ctx, tenantID)
	if err != nil {
		if repository.IsNotFound(err) {
			return apperrors.NewNotFound("tenant", map[string]any{"tenant_id": tenantID})
		}
		return err
	}

	conv, err := e.conversations.FindOrCreate(ctx, tenantID, counterpartID)
	if err != nil {
		return err
	}
	if _, err := e.messages.Append(ctx, conv.ID, domain.DirectionInbound, text, occurredAt); err != nil {
		return err
	}

	active, err := workhours.IsActive(deref(tenant.WorkingHoursStart), deref(tenant.WorkingHoursEnd), tenant.TZOffsetMinutes, occurredAt)
	if err != nil {
		// Hours are validated on write; a malformed value here means a bad
		// row, not a bad event. Skip arming rather than escalate on a
		// clock we cannot evaluate.
		e.logger.Warn("working hours unreadable, timer not armed",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		return nil
	}
	if !active {
		e.logger.Debug("outside working hours, timer not armed",
			zap.String("tenant_id", tenantID),
			zap.String("counterpart_id", counterpartID))
		return nil
	}

	// Last message wins: arming replaces any pending timer for this key.
	e.registry.Arm(Deadline{
		Key:            Key{TenantID: tenantID, CounterpartID: counterpartID},
		ConversationID: conv.ID,
		ArmedAt:        occurredAt,
		FireAt:         occurredAt.Add(tenant.ResponseDeadline()),
	}, e.onExpiry)
	return nil
}

// OnOutboundMessage records an agent reply and cancels the conversation's
// pending timer. Any reply satisfies the deadline regardless of content.
func (e *Engine) OnOutboundMessage(ctx context.Context, tenantID, counterpartID, text string, occurredAt time.Time) error {
	conv, err := e.conversations.FindOrCreate(ctx, tenantID, counterpartID)
	if err != nil {
		return err
	}
	if _, err := e.messages.Append(ctx, conv.ID, domain.DirectionOutbound, text, occurredAt); err != nil {
		return err
	}

	e.registry.Cancel(Key{TenantID: tenantID, CounterpartID: counterpartID})

	if conv.NeedsReview {
		if err := e.conversations.SetNeedsReview(ctx, conv.ID, false); err != nil {
			return err
		}
	}
	return nil
}

// onExpiry runs when a deadline elapses unanswered. Failures here never
// reach the ingestion path: an unusable tenant drops the expiry and relay
// errors are logged and absorbed. The next inbound message arms a fresh
// timer either way.
func (e *Engine) onExpiry(d Deadline) {
	ctx, cancel := context.WithTimeout(context.Background(), expiryTimeout)
	defer cancel()

	logger := e.logger.With(
		zap.String("tenant_id", d.Key.TenantID),
		zap.String("counterpart_id", d.Key.CounterpartID))

	usable, err := e.status.IsUsable(ctx, d.Key.TenantID)
	if err != nil {
		logger.Warn("escalation dropped: status lookup failed", zap.Error(err))
		e.metrics.RecordEscalationDropped()
		return
	}
	if !usable {
		logger.Info("escalation dropped: tenant channel not usable")
		e.metrics.RecordEscalationDropped()
		return
	}

	tenant, err := e.tenants.GetByID(ctx, d.Key.TenantID)
	if err != nil {
		logger.Warn("escalation dropped: tenant lookup failed", zap.Error(err))
		e.metrics.RecordEscalationDropped()
		return
	}

	if err := e.conversations.SetNeedsReview(ctx, d.ConversationID, true); err != nil {
		logger.Warn("failed to flag conversation for review", zap.Error(err))
	}

	elapsed := e.now().Sub(d.ArmedAt).Round(time.Second)
	text := fmt.Sprintf("No reply to %s for %s (deadline %d min). Conversation %s needs attention.",
		d.Key.CounterpartID, elapsed, tenant.ResponseDeadlineMinutes, d.ConversationID)

	if err := e.relay.Send(ctx, tenant.ChannelAddress, text); err != nil {
		logger.Warn("escalation notification not delivered", zap.Error(err))
		e.metrics.RecordRelayFailure()
		return
	}
	e.metrics.RecordEscalationFired()
	logger.Info("escalation sent", zap.Duration("elapsed", elapsed))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
