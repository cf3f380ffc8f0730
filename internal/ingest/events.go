// Package ingest consumes chat-gateway events from the message broker and
// feeds them into the escalation engine and the session manager.
package ingest

import (
	"time"

	"github.com/spec-kit/chat-escalation/internal/domain"
	apperrors "github.com/spec-kit/chat-escalation/pkg/util"
)

// Routing keys published by the chat gateway.
const (
	RoutingKeyInbound    = "chat.message.inbound"
	RoutingKeyOutbound   = "chat.message.outbound"
	RoutingKeyConnection = "chat.connection.status"
)

// MessageEvent is an inbound or outbound chat message observed by the gateway.
type MessageEvent struct {
	TenantID      string    `json:"tenant_id"`
	CounterpartID string    `json:"counterpart_id"`
	Text          string    `json:"text"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Validate checks the fields every message event must carry.
func (e *MessageEvent) Validate() error {
	details := map[string]any{}
	if e.TenantID == "" {
		details["tenant_id"] = "required"
	}
	if e.CounterpartID == "" {
		details["counterpart_id"] = "required"
	}
	if e.OccurredAt.IsZero() {
		details["occurred_at"] = "required"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid message event", details)
	}
	return nil
}

// ConnectionEvent reports a change in a tenant's channel connection.
type ConnectionEvent struct {
	TenantID   string    `json:"tenant_id"`
	Status     string    `json:"status"`
	Message    *string   `json:"message,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Validate checks the fields every connection event must carry.
func (e *ConnectionEvent) Validate() error {
	details := map[string]any{}
	if e.TenantID == "" {
		details["tenant_id"] = "required"
	}
	if !domain.ConnectionStatus(e.Status).Valid() {
		details["status"] = "unknown connection status"
	}
	if e.OccurredAt.IsZero() {
		details["occurred_at"] = "required"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid connection event", details)
	}
	return nil
}
