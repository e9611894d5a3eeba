package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/deepak445566/cv/internal/dto"
)

const (
	refreshCookieName = "refresh_token"
	refreshLeeway     = 30 * time.Second
	defaultSyncDelay  = 500 * time.Millisecond
)

// ErrSessionExpired is returned when the session could not be refreshed.
// The stored tokens have been cleared by the time it is returned.
var ErrSessionExpired = errors.New("session expired, please log in again")

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
	Data       json.RawMessage
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: %s (status %d)", e.Message, e.StatusCode)
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithSyncDelay sets how long cart changes are buffered before they are pushed.
func WithSyncDelay(d time.Duration) Option {
	return func(c *Client) { c.syncDelay = d }
}

// WithOnSyncError registers a callback for failed cart pushes.
func WithOnSyncError(fn func(error)) Option {
	return func(c *Client) { c.onSyncError = fn }
}

// Client talks to the storefront API on behalf of one user and keeps the
// session and cart in a Store.
type Client struct {
	baseURL     string
	http        *http.Client
	store       Store
	logger      *zap.Logger
	syncDelay   time.Duration
	onSyncError func(error)
	now         func() time.Time

	mu    sync.Mutex
	state State
	// generation changes whenever the signed in session starts or ends. Server
	// answers requested under an older generation must not touch local state.
	generation uint64

	// saveMu orders writes to the store so an older snapshot never replaces a newer one.
	saveMu sync.Mutex

	refreshes singleflight.Group
	cart      *Cart
}

// New loads the persisted state and returns a client for the API at baseURL.
func New(baseURL string, store Store, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("api base url must not be empty")
	}
	if store == nil {
		store = NewMemoryStore()
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: 15 * time.Second},
		store:     store,
		logger:    zap.NewNop(),
		syncDelay: defaultSyncDelay,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	state, err := store.Load()
	if err != nil {
		return nil, err
	}
	if state.Cart == nil {
		state.Cart = map[string]int{}
	}
	c.state = state
	c.cart = newCart(c)
	return c, nil
}

// Cart returns the cart state container.
func (c *Client) Cart() *Cart {
	return c.cart
}

// User returns the signed in user, or nil.
func (c *Client) User() *dto.UserResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.User == nil {
		return nil
	}
	user := *c.state.User
	return &user
}

// Authenticated reports whether a session is stored.
func (c *Client) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.AccessToken != "" || c.state.RefreshToken != ""
}

// Login signs in and merges the signed-out cart into the account's cart.
func (c *Client) Login(ctx context.Context, email, password string) (*dto.UserResponse, error) {
	return c.authenticate(ctx, "/auth/login", dto.LoginRequest{Email: email, Password: password})
}

// Register creates an account and signs in with it.
func (c *Client) Register(ctx context.Context, email, password, name string) (*dto.UserResponse, error) {
	return c.authenticate(ctx, "/auth/register", dto.RegisterRequest{Email: email, Password: password, Name: name})
}

func (c *Client) authenticate(ctx context.Context, path string, payload any) (*dto.UserResponse, error) {
	var out dto.AuthResponse
	resp, err := c.send(ctx, http.MethodPost, path, payload, "", &out)
	if err != nil {
		return nil, err
	}

	refresh := refreshCookie(resp)
	c.mu.Lock()
	c.state.AccessToken = out.AccessToken
	c.state.AccessExpiresAt = out.ExpiresAt
	if refresh != "" {
		c.state.RefreshToken = refresh
	}
	user := out.User
	c.state.User = &user
	c.generation++
	c.mu.Unlock()
	c.persist()

	if err := c.cart.mergeAfterLogin(ctx); err != nil {
		c.logger.Warn("cart merge after login failed", zap.Error(err))
		c.cart.reportSyncError(err)
	}
	return &user, nil
}

// Logout revokes the session on the server and forgets it locally.
// Local state is cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	c.cart.stop()

	c.mu.Lock()
	refresh := c.state.RefreshToken
	c.state = State{Cart: map[string]int{}}
	c.generation++
	c.mu.Unlock()
	c.persist()

	if refresh == "" {
		return nil
	}
	_, err := c.send(ctx, http.MethodPost, "/auth/logout", dto.RefreshRequest{RefreshToken: refresh}, "", nil)
	return err
}

// Me fetches the current profile and stores it.
func (c *Client) Me(ctx context.Context) (*dto.UserResponse, error) {
	var user dto.UserResponse
	if err := c.Do(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.state.User = &user
	c.mu.Unlock()
	c.persist()
	return &user, nil
}

// Do performs an API call with the stored access token, refreshing it when it is
// about to expire or when the API rejects it. out receives the envelope's data.
func (c *Client) Do(ctx context.Context, method, path string, payload, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	_, err = c.send(ctx, method, path, payload, token, out)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized || !c.hasRefreshToken() {
		return err
	}

	token, err = c.refresh(ctx, token)
	if err != nil {
		return err
	}
	_, err = c.send(ctx, method, path, payload, token, out)
	return err
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.state.AccessToken
	expiresAt := c.state.AccessExpiresAt
	hasRefresh := c.state.RefreshToken != ""
	c.mu.Unlock()

	if hasRefresh && (token == "" || (!expiresAt.IsZero() && expiresAt.Sub(c.now()) < refreshLeeway)) {
		return c.refresh(ctx, token)
	}
	return token, nil
}

func (c *Client) hasRefreshToken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.RefreshToken != ""
}

// refresh exchanges the refresh token for a new pair. Concurrent callers share one
// request; a caller whose stale token was already replaced gets the new one directly.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	v, err, _ := c.refreshes.Do("refresh", func() (any, error) {
		c.mu.Lock()
		current := c.state.AccessToken
		refresh := c.state.RefreshToken
		fresh := current != "" && current != stale && c.state.AccessExpiresAt.Sub(c.now()) >= refreshLeeway
		c.mu.Unlock()
		if fresh {
			return current, nil
		}
		if refresh == "" {
			return "", ErrSessionExpired
		}

		var out dto.AuthResponse
		resp, err := c.send(ctx, http.MethodPost, "/auth/refresh", dto.RefreshRequest{RefreshToken: refresh}, "", &out)
		if err != nil {
			// Only a definite rejection ends the session. Rate limits and server
			// errors leave the tokens in place for a later retry.
			var apiErr *APIError
			if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
				c.logger.Info("session refresh rejected", zap.Int("status", apiErr.StatusCode))
				c.clearSession()
				return "", ErrSessionExpired
			}
			return "", fmt.Errorf("refresh session: %w", err)
		}

		c.mu.Lock()
		c.state.AccessToken = out.AccessToken
		c.state.AccessExpiresAt = out.ExpiresAt
		if rotated := refreshCookie(resp); rotated != "" {
			c.state.RefreshToken = rotated
		}
		user := out.User
		c.state.User = &user
		c.mu.Unlock()
		c.persist()
		return out.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) clearSession() {
	c.mu.Lock()
	c.state.AccessToken = ""
	c.state.AccessExpiresAt = time.Time{}
	c.state.RefreshToken = ""
	c.state.User = nil
	c.generation++
	c.mu.Unlock()
	c.persist()
}

func (c *Client) sessionGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *Client) persist() {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	snapshot := c.state.clone()
	c.mu.Unlock()
	if err := c.store.Save(snapshot); err != nil {
		c.logger.Warn("failed to persist client state", zap.Error(err))
	}
}

func (c *Client) send(ctx context.Context, method, path string, payload any, token string, out any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < http.StatusBadRequest {
			return resp, fmt.Errorf("decode response: %w", err)
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		message := env.Message
		if message == "" {
			message = env.Error
		}
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return resp, &APIError{StatusCode: resp.StatusCode, Message: message, Data: env.Data}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return resp, fmt.Errorf("decode response data: %w", err)
		}
	}
	return resp, nil
}

func refreshCookie(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == refreshCookieName && cookie.MaxAge >= 0 {
			return cookie.Value
		}
	}
	return ""
}
