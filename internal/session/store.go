package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrSessionNotFound is returned when the session is unknown, expired or owned by someone else.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionReused is returned when an already rotated refresh session is presented again.
	// Every session of the affected user is revoked before it is returned.
	ErrSessionReused = errors.New("refresh session reused")
)

const (
	sessionPrefix     = "session:"
	rotatedPrefix     = "session_rotated:"
	userSessionPrefix = "user_sessions:"
)

// redisClient is the subset of go-redis used by the store.
type redisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

var _ redisClient = (*redis.Client)(nil)

// Store tracks refresh sessions in Redis so they can be rotated and revoked.
type Store struct {
	rdb   redisClient
	newID func() string
}

// NewStore builds a session store backed by the given client.
func NewStore(rdb redisClient) *Store {
	return &Store{rdb: rdb, newID: uuid.NewString}
}

// Create opens a new session for the user and returns its id.
func (s *Store) Create(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	id := s.newID()
	if err := s.rdb.Set(ctx, sessionPrefix+id, userID, ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	setKey := userSessionPrefix + userID
	if err := s.rdb.SAdd(ctx, setKey, id).Err(); err != nil {
		return "", fmt.Errorf("index session: %w", err)
	}
	if err := s.rdb.Expire(ctx, setKey, ttl).Err(); err != nil {
		return "", fmt.Errorf("expire session index: %w", err)
	}
	return id, nil
}

// Validate checks that the session exists and belongs to the user.
func (s *Store) Validate(ctx context.Context, sessionID, userID string) error {
	owner, err := s.rdb.Get(ctx, sessionPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("load session: %w", err)
	}
	if owner != userID {
		return ErrSessionNotFound
	}
	return nil
}

// Rotate consumes the old session and opens a new one. The old id is removed atomically,
// so two concurrent refreshes with the same token cannot both succeed.
func (s *Store) Rotate(ctx context.Context, oldID, userID string, ttl time.Duration) (string, error) {
	owner, err := s.rdb.GetDel(ctx, sessionPrefix+oldID).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("consume session: %w", err)
		}
		rotatedFor, rerr := s.rdb.Get(ctx, rotatedPrefix+oldID).Result()
		if rerr == nil && rotatedFor == userID {
			if err := s.RevokeAll(ctx, userID); err != nil {
				return "", err
			}
			return "", ErrSessionReused
		}
		return "", ErrSessionNotFound
	}
	if owner != userID {
		return "", ErrSessionNotFound
	}

	if err := s.rdb.Set(ctx, rotatedPrefix+oldID, userID, ttl).Err(); err != nil {
		return "", fmt.Errorf("mark session rotated: %w", err)
	}
	if err := s.rdb.SRem(ctx, userSessionPrefix+userID, oldID).Err(); err != nil {
		return "", fmt.Errorf("unindex session: %w", err)
	}
	return s.Create(ctx, userID, ttl)
}

// Revoke deletes a single session. Unknown sessions are ignored.
func (s *Store) Revoke(ctx context.Context, sessionID string) error {
	owner, err := s.rdb.GetDel(ctx, sessionPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("revoke session: %w", err)
	}
	if err := s.rdb.SRem(ctx, userSessionPrefix+owner, sessionID).Err(); err != nil {
		return fmt.Errorf("unindex session: %w", err)
	}
	return nil
}

// RevokeAll deletes every session of the user.
func (s *Store) RevokeAll(ctx context.Context, userID string) error {
	setKey := userSessionPrefix + userID
	ids, err := s.rdb.SMembers(ctx, setKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("list sessions: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionPrefix+id)
	}
	keys = append(keys, setKey)

	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}
