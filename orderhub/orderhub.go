// Package orderhub provides an embeddable Stripe webhook ingestion and
// order management library for delivery businesses.
//
// Setup:
//
//  1. Run migrations from migrations/ folder using your preferred tool
//  2. Create an OrderHub instance and mount routes
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/myapp?sslmode=disable")
//
//	hub, err := orderhub.New(orderhub.Config{
//	    DB:              db,
//	    JWTSecret:       "your-secret-key-at-least-32-chars",
//	    StripeSecretKey: "sk_live_...",
//	})
//	if err != nil {
//	    log.Fatal(err) // Will fail if migrations haven't been run
//	}
//
//	r := chi.NewRouter()
//	r.Mount("/webhooks", hub.WebhookRouter())
//	r.Mount("/api", hub.APIRouter())
//	http.ListenAndServe(":8080", r)
package orderhub

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/yava-delivery/orderhub/internal/http/features/couriers"
	"github.com/yava-delivery/orderhub/internal/http/features/orders"
	"github.com/yava-delivery/orderhub/internal/http/features/session"
	"github.com/yava-delivery/orderhub/internal/http/features/settings"
	"github.com/yava-delivery/orderhub/internal/http/features/stats"
	"github.com/yava-delivery/orderhub/internal/http/features/webhook"
	"github.com/yava-delivery/orderhub/internal/http/middleware"
	"github.com/yava-delivery/orderhub/pkg/auth"
	"github.com/yava-delivery/orderhub/pkg/ingest"
	"github.com/yava-delivery/orderhub/pkg/repository"
	"github.com/yava-delivery/orderhub/pkg/stripeapi"
)

// Config holds the configuration for the library.
type Config struct {
	// DB is the database connection (required).
	DB *sql.DB

	// JWTSecret is the secret key for signing JWT tokens (required, min 32 chars).
	JWTSecret string

	// StripeSecretKey is the Stripe API key used to expand line items and
	// customers (required).
	StripeSecretKey string

	// DefaultSigningSecret verifies webhooks whose routing token matches no
	// business (optional; such events are rejected without it).
	DefaultSigningSecret string

	// JWTIssuer is the issuer claim in JWT tokens (default: "orderhub").
	JWTIssuer string

	// AccessTokenTTL is the lifetime of access tokens (default: 12 hours).
	AccessTokenTTL time.Duration

	// AppBaseURL is the externally reachable origin used to render webhook
	// URLs in settings responses (default: "http://localhost:8080").
	AppBaseURL string

	// MaxWebhookBodySize caps webhook payloads (default: 1 MiB).
	MaxWebhookBodySize int64

	// Production hides error details in webhook responses.
	Production bool

	// Logger is the structured logger (default: JSON to stdout).
	Logger *slog.Logger
}

// OrderHub is the main library instance.
type OrderHub struct {
	config         Config
	db             *sql.DB
	usersRepo      *repository.UsersRepository
	businessesRepo *repository.BusinessesRepository
	ordersRepo     *repository.OrdersRepository
	couriersRepo   *repository.CouriersRepository
	sessionService *auth.SessionService
	tenantResolver *ingest.TenantResolver
	eventMapper    *ingest.Mapper
	orderWriter    *ingest.OrderWriter
}

// New creates a new OrderHub instance with the given configuration.
// Returns an error if required database tables don't exist.
// Run migrations first - see migrations/ folder for SQL files.
func New(cfg Config) (*OrderHub, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	// Validate schema exists
	if err := validateSchema(cfg.DB); err != nil {
		return nil, err
	}

	// Initialize repositories
	usersRepo := repository.NewUsersRepository(cfg.DB)
	businessesRepo := repository.NewBusinessesRepository(cfg.DB)
	ordersRepo := repository.NewOrdersRepository(cfg.DB)
	couriersRepo := repository.NewCouriersRepository(cfg.DB)

	// Initialize services
	sessionService := auth.NewSessionService(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL)
	stripeClient := stripeapi.New(cfg.StripeSecretKey)

	return &OrderHub{
		config:         cfg,
		db:             cfg.DB,
		usersRepo:      usersRepo,
		businessesRepo: businessesRepo,
		ordersRepo:     ordersRepo,
		couriersRepo:   couriersRepo,
		sessionService: sessionService,
		tenantResolver: ingest.NewTenantResolver(businessesRepo, cfg.DefaultSigningSecret, cfg.Logger),
		eventMapper:    ingest.NewMapper(stripeClient, cfg.Logger),
		orderWriter:    ingest.NewOrderWriter(ordersRepo, businessesRepo, usersRepo, cfg.Logger),
	}, nil
}

// WebhookRouter returns a chi router with the Stripe webhook endpoint.
// Mount this on your main router:
//
//	r.Mount("/webhooks", hub.WebhookRouter())
//
// Routes:
//
//	POST /stripe?secret=<routing token>  - Stripe event delivery
func (o *OrderHub) WebhookRouter() chi.Router {
	r := chi.NewRouter()

	handler := webhook.NewHandler(
		o.config.Logger,
		o.tenantResolver,
		o.eventMapper,
		o.orderWriter,
		o.config.MaxWebhookBodySize,
		o.config.Production,
	)
	r.Options("/stripe", handler.HandleEvent)
	r.Post("/stripe", handler.HandleEvent)

	return r
}

// APIRouter returns a chi router with the dashboard API: authentication,
// orders, couriers, stats and webhook settings.
//
// Routes:
//
//	POST /auth/register              - Register a business account
//	POST /auth/login                 - Login with email/password
//	GET  /orders                     - List orders (protected)
//	POST /orders                     - Create a manual order (protected)
//	GET  /orders/{orderID}           - Get one order (protected)
//	PATCH /orders/{orderID}/status   - Transition order status (protected)
//	POST /orders/{orderID}/assign    - Assign a courier (protected)
//	DELETE /orders/{orderID}         - Delete an order (protected)
//	GET  /couriers                   - List couriers (protected)
//	POST /couriers                   - Create a courier (protected)
//	GET  /couriers/{courierID}       - Get one courier (protected)
//	PUT  /couriers/{courierID}       - Update a courier (protected)
//	DELETE /couriers/{courierID}     - Remove a courier (protected)
//	GET  /stats                      - Order aggregates (protected)
//	GET  /settings/webhook           - Webhook settings (protected)
//	POST /settings/webhook/rotate    - Rotate the routing token (protected)
//	PUT  /settings/stripe            - Store the signing secret (protected)
func (o *OrderHub) APIRouter() chi.Router {
	r := chi.NewRouter()

	sessionHandler := session.NewHandler(o.config.Logger, o.usersRepo, o.businessesRepo, o.sessionService)
	r.Post("/auth/register", sessionHandler.Register)
	r.Post("/auth/login", sessionHandler.Login)

	ordersHandler := orders.NewHandler(o.config.Logger, o.ordersRepo, o.couriersRepo)
	couriersHandler := couriers.NewHandler(o.config.Logger, o.couriersRepo)
	statsHandler := stats.NewHandler(o.config.Logger, o.ordersRepo)
	settingsHandler := settings.NewHandler(o.config.Logger, o.businessesRepo, o.config.AppBaseURL)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(o.sessionService))

		r.Get("/orders", ordersHandler.List)
		r.Post("/orders", ordersHandler.Create)
		r.Get("/orders/{orderID}", ordersHandler.Get)
		r.Patch("/orders/{orderID}/status", ordersHandler.UpdateStatus)
		r.Post("/orders/{orderID}/assign", ordersHandler.Assign)
		r.Delete("/orders/{orderID}", ordersHandler.Delete)

		r.Get("/couriers", couriersHandler.List)
		r.Post("/couriers", couriersHandler.Create)
		r.Get("/couriers/{courierID}", couriersHandler.Get)
		r.Put("/couriers/{courierID}", couriersHandler.Update)
		r.Delete("/couriers/{courierID}", couriersHandler.Delete)

		r.Get("/stats", statsHandler.Get)

		r.Get("/settings/webhook", settingsHandler.GetWebhook)
		r.Post("/settings/webhook/rotate", settingsHandler.RotateWebhookSecret)
		r.Put("/settings/stripe", settingsHandler.SetSigningSecret)
	})

	return r
}

// SessionService returns the session service for advanced usage.
func (o *OrderHub) SessionService() *auth.SessionService {
	return o.sessionService
}

// AuthMiddleware returns middleware that validates JWT tokens.
// Use this to protect your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(hub.AuthMiddleware())
//	    r.Get("/protected", handler)
//	})
func (o *OrderHub) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.RequireSession(o.sessionService)
}

// GetBusinessID extracts the authenticated business id from a request.
// Use after AuthMiddleware:
//
//	businessID, ok := orderhub.GetBusinessID(r)
func GetBusinessID(r *http.Request) (uuid.UUID, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.BusinessID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// HealthHandler returns a simple health check handler.
func (o *OrderHub) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
	}
}

func validateConfig(cfg *Config) error {
	if cfg.DB == nil {
		return errors.New("orderhub: DB is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("orderhub: JWTSecret is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("orderhub: JWTSecret must be at least 32 characters")
	}
	if cfg.StripeSecretKey == "" {
		return errors.New("orderhub: StripeSecretKey is required")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "orderhub"
	}
	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = 12 * time.Hour
	}
	if cfg.AppBaseURL == "" {
		cfg.AppBaseURL = "http://localhost:8080"
	}
	if cfg.MaxWebhookBodySize == 0 {
		cfg.MaxWebhookBodySize = 1024 * 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
}

// validateSchema checks that required database tables exist.
func validateSchema(db *sql.DB) error {
	requiredTables := []string{"businesses", "users", "user_passwords", "orders", "couriers"}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRowContext(context.Background(), query, table).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("orderhub: missing table '%s' - run migrations first (see migrations/ folder)", table)
		}
		if err != nil {
			return fmt.Errorf("orderhub: failed to check schema: %w", err)
		}
	}

	return nil
}
