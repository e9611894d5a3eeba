package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	middlewarepkg "github.com/deepak445566/cv/internal/middleware"
)

func parseIntDefault(value string, fallback int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && v > 0 {
		return v
	}
	return fallback
}

// currentUser returns the authenticated user id or writes a 401.
func currentUser(c echo.Context) (uuid.UUID, bool, error) {
	id, ok := middlewarepkg.UserIDFromContext(c)
	if !ok {
		return uuid.Nil, false, Error(c, http.StatusUnauthorized, "authentication required")
	}
	return id, true, nil
}
