package dto

import "time"

// MessageEventRequest is the webhook payload for a chat message.
type MessageEventRequest struct {
	CounterpartID string    `json:"counterpart_id"`
	Text          string    `json:"text"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ConnectionEventRequest is the webhook payload for a connection change.
type ConnectionEventRequest struct {
	Status     string    `json:"status"`
	Message    *string   `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ConnectionEventResponse reports the applied transition.
type ConnectionEventResponse struct {
	TenantID       string `json:"tenant_id"`
	PreviousStatus string `json:"previous_status"`
	Status         string `json:"status"`
}
