package entity

import (
	"time"

	"github.com/google/uuid"
)

// Roles recognised by the API.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a shopper or administrator account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
