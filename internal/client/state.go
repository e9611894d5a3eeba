package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/deepak445566/cv/internal/dto"
)

// State is everything the client persists between runs.
type State struct {
	AccessToken     string            `json:"access_token,omitempty"`
	AccessExpiresAt time.Time         `json:"access_expires_at,omitempty"`
	RefreshToken    string            `json:"refresh_token,omitempty"`
	User            *dto.UserResponse `json:"user,omitempty"`
	Cart            map[string]int    `json:"cart"`
}

func (s State) clone() State {
	out := s
	out.Cart = cloneItems(s.Cart)
	if s.User != nil {
		user := *s.User
		out.User = &user
	}
	return out
}

func cloneItems(items map[string]int) map[string]int {
	out := make(map[string]int, len(items))
	for id, qty := range items {
		out[id] = qty
	}
	return out
}

// Store persists client state.
type Store interface {
	Load() (State, error)
	Save(State) error
}

// FileStore keeps the state as a JSON document readable only by the owner.
type FileStore struct {
	path string
}

// NewFileStore returns a store writing to path. Parent directories are created on save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the state file. A missing file yields an empty state.
func (s *FileStore) Load() (State, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{Cart: map[string]int{}}, nil
		}
		return State{}, fmt.Errorf("read state: %w", err)
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}
	if state.Cart == nil {
		state.Cart = map[string]int{}
	}
	return state, nil
}

// Save writes the state through a temporary file and renames it into place.
func (s *FileStore) Save(state State) error {
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod state: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// MemoryStore keeps state in memory only.
type MemoryStore struct {
	mu    sync.Mutex
	state State
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: State{Cart: map[string]int{}}}
}

func (s *MemoryStore) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone(), nil
}

func (s *MemoryStore) Save(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state.clone()
	return nil
}
