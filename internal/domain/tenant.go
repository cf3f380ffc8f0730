package domain

import "time"

// ConnectionStatus enumerates lifecycle states for a tenant messaging channel.
type ConnectionStatus string

const (
	StatusPending      ConnectionStatus = "pending"
	StatusScanned      ConnectionStatus = "scanned"
	StatusReady        ConnectionStatus = "ready"
	StatusError        ConnectionStatus = "error"
	StatusDisconnected ConnectionStatus = "disconnected"
)

// Valid reports whether s is a known connection status.
func (s ConnectionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusScanned, StatusReady, StatusError, StatusDisconnected:
		return true
	}
	return false
}

// Tenant is one business account whose conversations are monitored.
type Tenant struct {
	ID                      string
	Name                    string
	ChannelAddress          string
	ResponseDeadlineMinutes int
	WorkingHoursStart       *string
	WorkingHoursEnd         *string
	TZOffsetMinutes         int
	Status                  ConnectionStatus
	StatusMessage           *string
	StatusChangedAt         time.Time
	Connected               bool
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// ResponseDeadline returns the configured deadline as a duration.
func (t *Tenant) ResponseDeadline() time.Duration {
	return time.Duration(t.ResponseDeadlineMinutes) * time.Minute
}
