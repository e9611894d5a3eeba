package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/deepak445566/cv/internal/config"
	"github.com/deepak445566/cv/internal/dto"
	"github.com/deepak445566/cv/internal/entity"
	middlewarepkg "github.com/deepak445566/cv/internal/middleware"
	"github.com/deepak445566/cv/internal/service"
)

// Cookie names and paths used for browser sessions.
const (
	RefreshTokenCookie = "refresh_token"
	refreshCookiePath  = "/auth"
)

type authService interface {
	Register(ctx context.Context, req dto.RegisterRequest) (*service.TokenPair, error)
	Login(ctx context.Context, email, password string) (*service.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*service.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID uuid.UUID) error
	Me(ctx context.Context, userID uuid.UUID) (*dto.UserResponse, error)
}

var _ authService = (*service.AuthService)(nil)

// AuthHandler exposes authentication endpoints. Tokens are returned in the body and mirrored
// into HttpOnly cookies so browser clients never have to store the refresh token themselves.
type AuthHandler struct {
	authService authService
	cookies     config.CookieConfig
	now         func() time.Time
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(authService authService, cookies config.CookieConfig) *AuthHandler {
	return &AuthHandler{authService: authService, cookies: cookies, now: time.Now}
}

// Register handles POST /auth/register requests.
func (h *AuthHandler) Register(c echo.Context) error {
	var req dto.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Password == "" {
		return Error(c, http.StatusBadRequest, "email and password are required")
	}

	pair, err := h.authService.Register(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err, "unable to register user")
	}
	return h.respondWithTokens(c, http.StatusCreated, "registration successful", pair)
}

// Login handles POST /auth/login requests.
func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Password == "" {
		return Error(c, http.StatusBadRequest, "email and password are required")
	}

	pair, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err, "unable to authenticate")
	}
	return h.respondWithTokens(c, http.StatusOK, "login successful", pair)
}

// Refresh handles POST /auth/refresh. The cookie wins over a token in the body.
func (h *AuthHandler) Refresh(c echo.Context) error {
	token := h.refreshTokenFrom(c)
	if token == "" {
		return Error(c, http.StatusUnauthorized, "missing refresh token")
	}

	pair, err := h.authService.Refresh(c.Request().Context(), token)
	if err != nil {
		h.clearCookies(c)
		return respondError(c, err, "unable to refresh session")
	}
	return h.respondWithTokens(c, http.StatusOK, "session refreshed", pair)
}

// Logout handles POST /auth/logout. It always clears the cookies.
func (h *AuthHandler) Logout(c echo.Context) error {
	token := h.refreshTokenFrom(c)
	if err := h.authService.Logout(c.Request().Context(), token); err != nil {
		return respondError(c, err, "unable to logout")
	}
	h.clearCookies(c)
	return Success(c, http.StatusOK, "logged out", nil)
}

// LogoutAll handles POST /auth/logout-all for the authenticated user.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	userID, ok, err := currentUser(c)
	if !ok {
		return err
	}
	if err := h.authService.LogoutAll(c.Request().Context(), userID); err != nil {
		return respondError(c, err, "unable to revoke sessions")
	}
	h.clearCookies(c)
	return Success(c, http.StatusOK, "all sessions revoked", nil)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c echo.Context) error {
	userID, ok, err := currentUser(c)
	if !ok {
		return err
	}
	user, err := h.authService.Me(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err, "unable to load profile")
	}
	return Success(c, http.StatusOK, "profile retrieved", user)
}

func (h *AuthHandler) refreshTokenFrom(c echo.Context) string {
	if cookie, err := c.Cookie(RefreshTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	var body dto.RefreshRequest
	if err := c.Bind(&body); err != nil {
		return ""
	}
	return body.RefreshToken
}

func (h *AuthHandler) respondWithTokens(c echo.Context, status int, message string, pair *service.TokenPair) error {
	now := h.now()
	c.SetCookie(h.cookie(middlewarepkg.AccessTokenCookie, pair.AccessToken, "/", maxAge(pair.AccessExpiresAt, now)))
	c.SetCookie(h.cookie(RefreshTokenCookie, pair.RefreshToken, refreshCookiePath, maxAge(pair.RefreshExpiresAt, now)))
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")

	return Success(c, status, message, dto.AuthResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   pair.AccessExpiresAt,
		User:        userResponse(pair.User),
	})
}

func (h *AuthHandler) clearCookies(c echo.Context) {
	c.SetCookie(h.cookie(middlewarepkg.AccessTokenCookie, "", "/", -1))
	c.SetCookie(h.cookie(RefreshTokenCookie, "", refreshCookiePath, -1))
}

func (h *AuthHandler) cookie(name, value, path string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   h.cookies.Domain,
		MaxAge:   maxAge,
		Secure:   h.cookies.Secure,
		HttpOnly: true,
		SameSite: h.cookies.SameSite,
	}
}

func maxAge(expiresAt, now time.Time) int {
	seconds := int(expiresAt.Sub(now).Seconds())
	if seconds <= 0 {
		return -1
	}
	return seconds
}

func userResponse(user entity.User) dto.UserResponse {
	return dto.UserResponse{
		ID:    user.ID.String(),
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	}
}
