package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/chat-escalation/internal/api/dto"
	"github.com/spec-kit/chat-escalation/internal/domain"
	"github.com/spec-kit/chat-escalation/internal/ingest"
	apperrors "github.com/spec-kit/chat-escalation/pkg/util"
)

// EventsHandler offers an HTTP alternative to broker ingestion for gateways
// that deliver events by webhook.
type EventsHandler struct {
	messages ingest.MessageSink
	sessions ingest.ConnectionSink
}

// NewEventsHandler constructs handler.
func NewEventsHandler(messages ingest.MessageSink, sessions ingest.ConnectionSink) *EventsHandler {
	return &EventsHandler{messages: messages, sessions: sessions}
}

// InboundMessage handles POST /gateway/tenants/:id/events/messages/inbound.
func (h *EventsHandler) InboundMessage(c *fiber.Ctx) error {
	return h.handleMessage(c, h.messages.OnInboundMessage)
}

// OutboundMessage handles POST /gateway/tenants/:id/events/messages/outbound.
func (h *EventsHandler) OutboundMessage(c *fiber.Ctx) error {
	return h.handleMessage(c, h.messages.OnOutboundMessage)
}

// ConnectionStatus handles POST /gateway/tenants/:id/events/connection.
func (h *EventsHandler) ConnectionStatus(c *fiber.Ctx) error {
	var req dto.ConnectionEventRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	event := ingest.ConnectionEvent{
		TenantID:   c.Params("id"),
		Status:     req.Status,
		Message:    req.Message,
		OccurredAt: req.OccurredAt,
	}
	if err := event.Validate(); err != nil {
		return err
	}

	previous, err := h.sessions.Transition(c.Context(), event.TenantID, domain.ConnectionStatus(event.Status), event.Message, event.OccurredAt)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ConnectionEventResponse{
		TenantID:       event.TenantID,
		PreviousStatus: string(previous),
		Status:         event.Status,
	}})
}

func (h *EventsHandler) handleMessage(c *fiber.Ctx, sink func(ctx context.Context, tenantID, counterpartID, text string, occurredAt time.Time) error) error {
	var req dto.MessageEventRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	event := ingest.MessageEvent{
		TenantID:      c.Params("id"),
		CounterpartID: req.CounterpartID,
		Text:          req.Text,
		OccurredAt:    req.OccurredAt,
	}
	if err := event.Validate(); err != nil {
		return err
	}
	if err := sink(c.Context(), event.TenantID, event.CounterpartID, event.Text, event.OccurredAt); err != nil {
		return err
	}
	return c.SendStatus(http.StatusAccepted)
}
