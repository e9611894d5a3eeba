package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/deepak445566/cv/internal/auth"
	"github.com/deepak445566/cv/internal/dto"
	"github.com/deepak445566/cv/internal/entity"
	"github.com/deepak445566/cv/internal/repository"
	"github.com/deepak445566/cv/internal/session"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidRefreshToken is returned when a refresh token cannot be exchanged.
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	// ErrEmailAlreadyExists is returned when registering an email that is taken.
	ErrEmailAlreadyExists = errors.New("email already registered")
)

// SessionStore keeps track of issued refresh sessions.
type SessionStore interface {
	Create(ctx context.Context, userID string, ttl time.Duration) (string, error)
	Rotate(ctx context.Context, oldID, userID string, ttl time.Duration) (string, error)
	Validate(ctx context.Context, sessionID, userID string) error
	Revoke(ctx context.Context, sessionID string) error
	RevokeAll(ctx context.Context, userID string) error
}

// TokenPair is the result of a successful authentication.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             entity.User
}

// AuthService coordinates credential validation, token issuance and refresh sessions.
type AuthService struct {
	users    repository.UsersRepository
	tokens   *auth.TokenManager
	sessions SessionStore
	logger   *zap.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(users repository.UsersRepository, tokens *auth.TokenManager, sessions SessionStore, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{users: users, tokens: tokens, sessions: sessions, logger: logger}
}

// Register creates a shopper account and signs it in.
func (s *AuthService) Register(ctx context.Context, req dto.RegisterRequest) (*TokenPair, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, email, string(hashed), strings.TrimSpace(req.Name), entity.RoleUser)
	if err != nil {
		if errors.Is(err, repository.ErrEmailDuplicate) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	return s.issue(ctx, user)
}

// Login validates credentials and opens a new session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, invalid("email and password must not be empty")
	}

	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(ctx, user)
}

// Refresh exchanges a refresh token for a new token pair. The presented session is consumed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	sessionID, err := s.sessions.Rotate(ctx, claims.ID, claims.Subject, s.tokens.RefreshTTL())
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionReused):
			s.logger.Warn("refresh token reuse detected, sessions revoked", zap.String("user_id", claims.Subject))
			return nil, ErrInvalidRefreshToken
		case errors.Is(err, session.ErrSessionNotFound):
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	return s.pair(user, sessionID)
}

// Logout revokes the session behind refreshToken. Invalid tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil
	}
	// Only the owner of a session may end it.
	if err := s.sessions.Validate(ctx, claims.ID, claims.Subject); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil
		}
		return err
	}
	return s.sessions.Revoke(ctx, claims.ID)
}

// LogoutAll revokes every session of the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	if err := s.sessions.RevokeAll(ctx, userID.String()); err != nil {
		return err
	}
	s.logger.Info("all sessions revoked", zap.String("user_id", userID.String()))
	return nil
}

// Me returns the profile of the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*dto.UserResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := toUserResponse(*user)
	return &resp, nil
}

// EnsureAdmin makes sure an administrator account exists for the given credentials.
// An existing account with that email is promoted, its password is left untouched.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil
	}
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, normalized)
	switch {
	case err == nil:
		if user.Role == entity.RoleAdmin {
			return nil
		}
		role := entity.RoleAdmin
		if _, err := s.users.Update(ctx, user.ID, repository.UserPatch{Role: &role}); err != nil {
			return fmt.Errorf("promote admin: %w", err)
		}
		s.logger.Info("existing user promoted to admin", zap.String("email", normalized))
		return nil
	case !errors.Is(err, repository.ErrUserNotFound):
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.users.Create(ctx, normalized, string(hashed), "Administrator", entity.RoleAdmin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	s.logger.Info("admin account created", zap.String("email", normalized))
	return nil
}

func (s *AuthService) issue(ctx context.Context, user *entity.User) (*TokenPair, error) {
	sessionID, err := s.sessions.Create(ctx, user.ID.String(), s.tokens.RefreshTTL())
	if err != nil {
		return nil, err
	}
	return s.pair(user, sessionID)
}

func (s *AuthService) pair(user *entity.User, sessionID string) (*TokenPair, error) {
	access, accessExp, err := s.tokens.GenerateAccess(user.ID.String(), user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.tokens.GenerateRefresh(user.ID.String(), sessionID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		User:             *user,
	}, nil
}

func toUserResponse(u entity.User) dto.UserResponse {
	return dto.UserResponse{ID: u.ID.String(), Email: u.Email, Name: u.Name, Role: u.Role}
}
