package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/deepak445566/cv/internal/config"
)

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(ContextKeyRequestID, "rid-123")
	c.Set(ContextKeyUserID, "user-1")

	err := Logging(logger)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	entries := logs.FilterField(zap.String("request_id", "rid-123")).All()
	if len(entries) != 1 || entries[0].Level != zapcore.InfoLevel {
		t.Fatalf("expected one info entry with request id, got %v", logs.All())
	}
	if entries[0].ContextMap()["user_id"] != "user-1" || entries[0].ContextMap()["status"] != int64(200) {
		t.Fatalf("unexpected fields %v", entries[0].ContextMap())
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.Set(ContextKeyRequestID, "rid-456")
	expected := errors.New("boom")
	err = Logging(logger)(func(c echo.Context) error {
		return expected
	})(c)
	if !errors.Is(err, expected) {
		t.Fatalf("expected error to bubble up")
	}
	failed := logs.FilterField(zap.String("request_id", "rid-456")).All()
	if len(failed) != 1 || failed[0].Level != zapcore.ErrorLevel {
		t.Fatalf("expected error entry for failed request, got %v", failed)
	}
}

type fakeCounter struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Duration
	err     error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeCounter) Incr(ctx context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCounter) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expires[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func runLimited(mw echo.MiddlewareFunc, ip string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set(echo.HeaderXRealIP, ip)
	rec := httptest.NewRecorder()
	_ = mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(e.NewContext(req, rec))
	return rec
}

func TestAuthRateLimiter(t *testing.T) {
	counter := newFakeCounter()
	mw := AuthRateLimiter(counter, config.RateLimitConfig{Requests: 2, Interval: time.Hour}, nil)

	for i := 0; i < 2; i++ {
		if rec := runLimited(mw, "10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d should pass, got %d", i, rec.Code)
		}
	}
	rec := runLimited(mw, "10.0.0.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if rec := runLimited(mw, "10.0.0.2"); rec.Code != http.StatusOK {
		t.Fatalf("other clients should not be limited, got %d", rec.Code)
	}
	if len(counter.expires) != 2 {
		t.Fatalf("expected one expiry per window key, got %v", counter.expires)
	}
	for _, ttl := range counter.expires {
		if ttl != time.Hour {
			t.Fatalf("expected window ttl, got %s", ttl)
		}
	}
}

func TestAuthRateLimiter_FailsOpen(t *testing.T) {
	counter := newFakeCounter()
	counter.err = errors.New("connection refused")
	mw := AuthRateLimiter(counter, config.RateLimitConfig{Requests: 1, Interval: time.Minute}, nil)

	for i := 0; i < 3; i++ {
		if rec := runLimited(mw, "10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("expected passthrough when redis fails, got %d", rec.Code)
		}
	}
}

func TestCheckoutRateLimiter(t *testing.T) {
	mw := CheckoutRateLimiter(config.RateLimitConfig{Requests: 1, Interval: time.Minute})
	e := echo.New()
	run := func(userID string) int {
		req := httptest.NewRequest(http.MethodPost, "/orders", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set(ContextKeyUserID, userID)
		_ = mw(func(c echo.Context) error { return c.NoContent(http.StatusCreated) })(c)
		return rec.Code
	}

	if code := run("user-1"); code != http.StatusCreated {
		t.Fatalf("expected first checkout to pass, got %d", code)
	}
	if code := run("user-1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected second checkout rejected, got %d", code)
	}
	if code := run("user-2"); code != http.StatusCreated {
		t.Fatalf("expected separate bucket per user, got %d", code)
	}

	mw = CheckoutRateLimiter(config.RateLimitConfig{})
	if code := run("user-1"); code != http.StatusCreated {
		t.Fatalf("expected passthrough when limiter disabled")
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	mw := RequireRole("admin")

	t.Run("missing role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		_ = mw(func(c echo.Context) error { return nil })(c)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("incorrect role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set(ContextKeyUserRole, "user")

		_ = mw(func(c echo.Context) error { return nil })(c)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set(ContextKeyUserRole, "admin")

		called := false
		if err := mw(func(c echo.Context) error {
			called = true
			return c.NoContent(http.StatusOK)
		})(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !called {
			t.Fatalf("expected handler to run")
		}
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	e := echo.New()
	handler := RequestID()

	t.Run("reuse incoming header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "incoming")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		if err := handler(func(c echo.Context) error {
			if RequestIDFromContext(c) != "incoming" {
				t.Fatalf("expected request id to be stored")
			}
			return c.NoContent(http.StatusOK)
		})(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if rec.Header().Get("X-Request-ID") != "incoming" {
			t.Fatalf("expected response header to propagate request id")
		}
	})

	t.Run("generate when missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		if err := handler(func(c echo.Context) error {
			if RequestIDFromContext(c) == "" {
				t.Fatalf("expected generated request id")
			}
			return c.NoContent(http.StatusOK)
		})(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if rec.Header().Get("X-Request-ID") == "" {
			t.Fatalf("expected response header set")
		}
	})
}

func TestCORS(t *testing.T) {
	e := echo.New()
	e.Use(CORS([]string{"http://localhost:5173"}))
	e.GET("/products", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	tests := map[string]struct {
		origin      string
		allowOrigin string
	}{
		"allowed origin":  {origin: "http://localhost:5173", allowOrigin: "http://localhost:5173"},
		"unknown origin":  {origin: "http://evil.example.com", allowOrigin: ""},
		"no origin given": {allowOrigin: ""},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/products", nil)
			if tt.origin != "" {
				req.Header.Set(echo.HeaderOrigin, tt.origin)
			}
			req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodGet)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != tt.allowOrigin {
				t.Fatalf("expected allow origin %q, got %q", tt.allowOrigin, got)
			}
			if tt.allowOrigin != "" && rec.Header().Get(echo.HeaderAccessControlAllowCredentials) != "true" {
				t.Fatalf("expected credentials to be allowed")
			}
		})
	}
}

func TestMetricsMiddleware(t *testing.T) {
	e := echo.New()
	e.Use(Metrics())
	e.GET("/products/:id", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/products/abc", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected handler status to pass through, got %d", rec.Code)
	}
}
