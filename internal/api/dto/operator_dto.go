package dto

import "time"

// OperatorRegisterRequest payload for new operators.
type OperatorRegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OperatorLoginRequest payload for login.
type OperatorLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
