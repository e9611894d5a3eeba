package dto

import "time"

// LoginRequest captures credential input.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest captures self-service registration payloads.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// RefreshRequest lets non-browser clients pass the refresh token in the body
// when they cannot replay the refresh cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthResponse contains the issued access token and the authenticated user.
// The refresh token travels only in an HttpOnly cookie.
type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        UserResponse `json:"user"`
}
