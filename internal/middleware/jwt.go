package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	authpkg "github.com/deepak445566/cv/internal/auth"
)

// AccessTokenCookie is the cookie carrying the access token for browser clients.
const AccessTokenCookie = "access_token"

// JWT validates access tokens and stores user metadata in the request context.
// The Authorization header wins over the cookie when both are present.
func JWT(manager *authpkg.TokenManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, msg := accessToken(c)
			if token == "" {
				return unauthorized(c, msg)
			}

			claims, err := manager.ParseAccess(token)
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					return unauthorized(c, "token expired")
				}
				return unauthorized(c, "invalid token")
			}

			c.Set(ContextKeyUserID, claims.Subject)
			c.Set(ContextKeyUserEmail, claims.Email)
			c.Set(ContextKeyUserRole, claims.Role)

			return next(c)
		}
	}
}

func accessToken(c echo.Context) (string, string) {
	if authHeader := c.Request().Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", "invalid authorization header"
		}
		return strings.TrimSpace(parts[1]), ""
	}
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, ""
	}
	return "", "missing authorization header"
}

func unauthorized(c echo.Context, msg string) error {
	c.Response().Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": msg})
}
