package domain

import "time"

// MessageDirection distinguishes customer messages from agent replies.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// Message is an immutable record belonging to exactly one conversation.
type Message struct {
	ID             string
	ConversationID string
	Direction      MessageDirection
	Body           string
	CreatedAt      time.Time
}
