package domain

import "time"

// Operator is a dashboard login allowed to manage tenants and trigger reports.
type Operator struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
