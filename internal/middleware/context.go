package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Context keys used to store authentication metadata.
const (
	ContextKeyUserID    = "user_id"
	ContextKeyUserEmail = "user_email"
	ContextKeyUserRole  = "user_role"
	ContextKeyRequestID = "request_id"
)

// UserIDFromContext returns the authenticated user id.
func UserIDFromContext(c echo.Context) (uuid.UUID, bool) {
	raw, ok := c.Get(ContextKeyUserID).(string)
	if !ok || raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// UserRoleFromContext returns the role claim of the authenticated user.
func UserRoleFromContext(c echo.Context) string {
	role, _ := c.Get(ContextKeyUserRole).(string)
	return role
}
