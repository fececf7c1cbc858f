package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/yava-delivery/orderhub/internal/config"
	"github.com/yava-delivery/orderhub/internal/httputil"
)

// RateLimitConfig holds rate limiting configuration for a specific endpoint type.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Logger   *slog.Logger
}

// RateLimit creates an IP-based rate limiter middleware with logging.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Logger != nil {
				cfg.Logger.Warn("rate limit exceeded",
					"ip", r.RemoteAddr,
					"path", r.URL.Path,
					"method", r.Method,
					"user_agent", r.UserAgent(),
				)
			}
			httputil.Error(w, http.StatusTooManyRequests, "rate limit exceeded. please try again later")
		}),
	)
}

// NoRateLimit returns a no-op middleware when rate limiting is disabled.
func NoRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// CreateRateLimiters creates rate limiting middleware functions based on
// configuration. The webhook bucket is sized for Stripe's retry bursts and
// is deliberately looser than the auth bucket.
func CreateRateLimiters(cfg config.RateLimitConfig, logger *slog.Logger) map[string]func(http.Handler) http.Handler {
	if !cfg.Enabled {
		noOp := NoRateLimit()
		return map[string]func(http.Handler) http.Handler{
			"auth":    noOp,
			"webhook": noOp,
			"api":     noOp,
		}
	}

	return map[string]func(http.Handler) http.Handler{
		"auth": RateLimit(RateLimitConfig{
			Requests: cfg.AuthRequestsPerWindow,
			Window:   time.Duration(cfg.AuthWindowMinutes) * time.Minute,
			Logger:   logger,
		}),
		"webhook": RateLimit(RateLimitConfig{
			Requests: cfg.WebhookRequestsPerWindow,
			Window:   time.Duration(cfg.WebhookWindowMinutes) * time.Minute,
			Logger:   logger,
		}),
		"api": RateLimit(RateLimitConfig{
			Requests: cfg.APIRequestsPerWindow,
			Window:   time.Duration(cfg.APIWindowMinutes) * time.Minute,
			Logger:   logger,
		}),
	}
}
