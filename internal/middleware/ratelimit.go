package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/deepak445566/cv/internal/config"
	"github.com/deepak445566/cv/internal/metrics"
)

// windowCounter is the subset of go-redis used by the fixed window limiter.
type windowCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

var _ windowCounter = (*redis.Client)(nil)

func passthrough(next echo.HandlerFunc) echo.HandlerFunc {
	return next
}

// AuthRateLimiter limits requests per client IP with a fixed window shared through Redis,
// so every API instance sees the same counters. Redis failures let the request through.
func AuthRateLimiter(rdb windowCounter, cfg config.RateLimitConfig, logger *zap.Logger) echo.MiddlewareFunc {
	if rdb == nil || cfg.Requests <= 0 || cfg.Interval <= 0 {
		return passthrough
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			current := time.Now()
			window := current.UnixNano() / int64(cfg.Interval)
			key := fmt.Sprintf("ratelimit:auth:%s:%d", c.RealIP(), window)

			count, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				logger.Warn("auth rate limiter unavailable", zap.Error(err))
				return next(c)
			}
			if count == 1 {
				if err := rdb.Expire(ctx, key, cfg.Interval).Err(); err != nil {
					logger.Warn("auth rate limiter expire failed", zap.Error(err))
				}
			}

			if count > int64(cfg.Requests) {
				windowEnd := time.Unix(0, (window+1)*int64(cfg.Interval))
				retryAfter := int(math.Ceil(windowEnd.Sub(current).Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				metrics.RateLimitExceeded.WithLabelValues("auth").Inc()
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "too many attempts, try again later"})
			}

			return next(c)
		}
	}
}

// CheckoutRateLimiter applies a token bucket per authenticated user (or client IP).
func CheckoutRateLimiter(cfg config.RateLimitConfig) echo.MiddlewareFunc {
	if cfg.Requests <= 0 || cfg.Interval <= 0 {
		return passthrough
	}

	perRequest := cfg.Interval / time.Duration(cfg.Requests)
	if perRequest <= 0 {
		perRequest = time.Second
	}
	limiters := &limiterSet{
		every:    rate.Every(perRequest),
		burst:    cfg.Requests,
		limiters: make(map[string]*rate.Limiter),
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key, _ := c.Get(ContextKeyUserID).(string)
			if key == "" {
				key = c.RealIP()
			}

			reservation := limiters.get(key).Reserve()
			if delay := reservation.Delay(); delay > 0 {
				reservation.Cancel()
				metrics.RateLimitExceeded.WithLabelValues("checkout").Inc()
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "checkout rate limit exceeded"})
			}

			return next(c)
		}
	}
}

const maxTrackedLimiters = 10000

type limiterSet struct {
	mu       sync.Mutex
	every    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func (s *limiterSet) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[key]
	if ok {
		return limiter
	}
	if len(s.limiters) >= maxTrackedLimiters {
		now := time.Now()
		for k, l := range s.limiters {
			if l.TokensAt(now) >= float64(s.burst) {
				delete(s.limiters, k)
			}
		}
	}
	limiter = rate.NewLimiter(s.every, s.burst)
	s.limiters[key] = limiter
	return limiter
}
