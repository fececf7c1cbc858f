package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string
	ServerPort int

	// Environment: "development" or "production". Error payloads carry
	// diagnostic detail only outside production.
	Environment string

	// AppBaseURL is the externally reachable origin, used to render the
	// webhook URL shown in settings.
	AppBaseURL string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration

	// Stripe
	StripeSecretKey            string
	StripeDefaultSigningSecret string

	RateLimit       RateLimitConfig
	SecurityHeaders SecurityHeadersConfig
	Validation      ValidationConfig
}

// RateLimitConfig holds per-surface rate limiting settings.
type RateLimitConfig struct {
	Enabled bool

	AuthRequestsPerWindow    int
	AuthWindowMinutes        int
	WebhookRequestsPerWindow int
	WebhookWindowMinutes     int
	APIRequestsPerWindow     int
	APIWindowMinutes         int
}

// SecurityHeadersConfig holds security header settings.
type SecurityHeadersConfig struct {
	Enabled            bool
	CSP                string
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	XSSProtection      string
	ReferrerPolicy     string
	PermissionsPolicy  string
}

// ValidationConfig holds request validation settings.
type ValidationConfig struct {
	MaxRequestBodySize int64
	MaxWebhookBodySize int64
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server defaults
		ServerAddr:  getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort:  getEnvInt("SERVER_PORT", 8080),
		Environment: getEnv("APP_ENV", "development"),
		AppBaseURL:  getEnv("APP_BASE_URL", "http://localhost:8080"),

		// Database defaults (matches podman setup: make postgres-start)
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 25432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "orderhub"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// JWT defaults
		JWTSecret:      getEnv("JWT_SECRET", ""),
		JWTIssuer:      getEnv("JWT_ISSUER", "orderhub"),
		AccessTokenTTL: getEnvDuration("ACCESS_TOKEN_TTL", 12*time.Hour),

		// Stripe. The default signing secret backs webhooks whose routing
		// token matches no business.
		StripeSecretKey:            getEnv("STRIPE_SECRET_KEY", ""),
		StripeDefaultSigningSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		RateLimit: RateLimitConfig{
			Enabled:                  getEnvBool("RATE_LIMIT_ENABLED", true),
			AuthRequestsPerWindow:    getEnvInt("RATE_LIMIT_AUTH_REQUESTS", 10),
			AuthWindowMinutes:        getEnvInt("RATE_LIMIT_AUTH_WINDOW_MINUTES", 1),
			WebhookRequestsPerWindow: getEnvInt("RATE_LIMIT_WEBHOOK_REQUESTS", 300),
			WebhookWindowMinutes:     getEnvInt("RATE_LIMIT_WEBHOOK_WINDOW_MINUTES", 1),
			APIRequestsPerWindow:     getEnvInt("RATE_LIMIT_API_REQUESTS", 120),
			APIWindowMinutes:         getEnvInt("RATE_LIMIT_API_WINDOW_MINUTES", 1),
		},

		SecurityHeaders: SecurityHeadersConfig{
			Enabled:            getEnvBool("SECURITY_HEADERS_ENABLED", true),
			CSP:                getEnv("SECURITY_CSP", "default-src 'none'; frame-ancestors 'none'"),
			HSTSMaxAge:         getEnvInt("SECURITY_HSTS_MAX_AGE", 31536000),
			FrameOptions:       getEnv("SECURITY_FRAME_OPTIONS", "DENY"),
			ContentTypeOptions: getEnv("SECURITY_CONTENT_TYPE_OPTIONS", "nosniff"),
			XSSProtection:      getEnv("SECURITY_XSS_PROTECTION", "1; mode=block"),
			ReferrerPolicy:     getEnv("SECURITY_REFERRER_POLICY", "strict-origin-when-cross-origin"),
			PermissionsPolicy:  getEnv("SECURITY_PERMISSIONS_POLICY", "geolocation=(), microphone=(), camera=()"),
		},

		Validation: ValidationConfig{
			MaxRequestBodySize: getEnvInt64("MAX_REQUEST_BODY_SIZE", 256*1024),
			MaxWebhookBodySize: getEnvInt64("MAX_WEBHOOK_BODY_SIZE", 1024*1024),
		},
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.StripeSecretKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is required")
	}

	return cfg, nil
}

// IsProduction returns true when running with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
