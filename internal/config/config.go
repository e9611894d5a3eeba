package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RateLimitConfig indicates how many requests are allowed within a given interval.
type RateLimitConfig struct {
	Requests int
	Interval time.Duration
}

// CookieConfig controls the attributes of the session cookies issued by the API.
type CookieConfig struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// ShippingConfig holds the checkout shipping policy.
type ShippingConfig struct {
	Flat     decimal.Decimal
	FreeOver decimal.Decimal
}

// Config aggregates application-wide configuration values.
type Config struct {
	DatabaseURL        string
	RedisURL           string
	Port               string
	JWTSecret          string
	JWTRefreshSecret   string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	CORSAllowedOrigins []string
	Cookie             CookieConfig
	RateLimitAuth      RateLimitConfig
	RateLimitCheckout  RateLimitConfig
	Shipping           ShippingConfig
	MediaBaseURL       string
	LogLevel           string
	LogFormat          string
	AdminEmail         string
	AdminPassword      string
}

// Load reads configuration from environment variables and applies sane defaults.
func Load() (*Config, error) {
	jwtSecret := getEnv("JWT_SECRET", "dev-secret")
	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		Port:               getEnv("PORT", "8080"),
		JWTSecret:          jwtSecret,
		JWTRefreshSecret:   getEnv("JWT_REFRESH_SECRET", jwtSecret+"-refresh"),
		AccessTokenTTL:     parseDuration(getEnv("ACCESS_TOKEN_TTL", "15m"), 15*time.Minute),
		RefreshTokenTTL:    parseDuration(getEnv("REFRESH_TOKEN_TTL", "168h"), 7*24*time.Hour),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		MediaBaseURL:       strings.TrimRight(os.Getenv("MEDIA_BASE_URL"), "/"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		AdminEmail:         strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
	}

	sameSite, err := parseSameSite(getEnv("COOKIE_SAMESITE", "lax"))
	if err != nil {
		return nil, fmt.Errorf("invalid COOKIE_SAMESITE value: %w", err)
	}
	cfg.Cookie = CookieConfig{
		Domain:   os.Getenv("COOKIE_DOMAIN"),
		Secure:   parseBool(getEnv("COOKIE_SECURE", "false")),
		SameSite: sameSite,
	}
	if cfg.Cookie.SameSite == http.SameSiteNoneMode && !cfg.Cookie.Secure {
		return nil, errors.New("COOKIE_SAMESITE=none requires COOKIE_SECURE=true")
	}

	for _, origin := range cfg.CORSAllowedOrigins {
		if origin == "*" {
			return nil, errors.New("CORS_ALLOWED_ORIGINS must list explicit origins when credentials are allowed")
		}
	}

	if cfg.RateLimitAuth, err = parseRateLimit(getEnv("RATE_LIMIT_AUTH", "10/min")); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_AUTH value: %w", err)
	}
	if cfg.RateLimitCheckout, err = parseRateLimit(getEnv("RATE_LIMIT_CHECKOUT", "5/min")); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_CHECKOUT value: %w", err)
	}

	if cfg.Shipping.Flat, err = parseMoney(getEnv("SHIPPING_FLAT", "4.99")); err != nil {
		return nil, fmt.Errorf("invalid SHIPPING_FLAT value: %w", err)
	}
	if cfg.Shipping.FreeOver, err = parseMoney(getEnv("FREE_SHIPPING_OVER", "50.00")); err != nil {
		return nil, fmt.Errorf("invalid FREE_SHIPPING_OVER value: %w", err)
	}

	return cfg, nil
}

func parseRateLimit(value string) (RateLimitConfig, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimitConfig{}, fmt.Errorf("expected format <requests>/<interval>, got %q", value)
	}

	requests, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || requests <= 0 {
		return RateLimitConfig{}, fmt.Errorf("invalid request count: %v", parts[0])
	}

	unit := strings.ToLower(strings.TrimSpace(parts[1]))
	var interval time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		interval = time.Second
	case "m", "min", "minute", "minutes":
		interval = time.Minute
	case "h", "hr", "hour", "hours":
		interval = time.Hour
	default:
		return RateLimitConfig{}, fmt.Errorf("unsupported interval unit: %s", unit)
	}

	return RateLimitConfig{Requests: requests, Interval: interval}, nil
}

func parseSameSite(value string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("unsupported same-site mode: %s", value)
	}
}

func parseMoney(value string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, err
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount must not be negative: %s", value)
	}
	return amount.Round(2), nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseDuration(input string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(input)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseBool(input string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(input))
	return err == nil && v
}

func splitList(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimRight(strings.TrimSpace(part), "/"); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
