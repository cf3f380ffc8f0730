package domain

import "time"

// Conversation is one customer thread, unique per (tenant, counterpart).
type Conversation struct {
	ID            string
	TenantID      string
	CounterpartID string
	Closed        bool
	NeedsReview   bool
	CreatedAt     time.Time
}
