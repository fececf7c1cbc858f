package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yava-delivery/orderhub/internal/config"
	"github.com/yava-delivery/orderhub/internal/http/features/couriers"
	"github.com/yava-delivery/orderhub/internal/http/features/orders"
	"github.com/yava-delivery/orderhub/internal/http/features/session"
	"github.com/yava-delivery/orderhub/internal/http/features/settings"
	"github.com/yava-delivery/orderhub/internal/http/features/stats"
	"github.com/yava-delivery/orderhub/internal/http/features/webhook"
	"github.com/yava-delivery/orderhub/internal/http/middleware"
	"github.com/yava-delivery/orderhub/internal/httputil"
	"github.com/yava-delivery/orderhub/pkg/auth"
	"github.com/yava-delivery/orderhub/pkg/ingest"
	"github.com/yava-delivery/orderhub/pkg/repository"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger          *slog.Logger
	SessionService  *auth.SessionService
	TenantResolver  *ingest.TenantResolver
	EventMapper     *ingest.Mapper
	OrderWriter     *ingest.OrderWriter
	UsersRepo       *repository.UsersRepository
	BusinessesRepo  *repository.BusinessesRepository
	OrdersRepo      *repository.OrdersRepository
	CouriersRepo    *repository.CouriersRepository
	AppBaseURL      string
	RateLimitConfig config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	Validation      config.ValidationConfig
	Production      bool
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// Create rate limiters for different endpoint types
	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)

	// Stripe webhook ingestion. Body size is capped inside the handler so
	// the webhook limit can differ from the API limit.
	webhookHandler := webhook.NewHandler(
		cfg.Logger,
		cfg.TenantResolver,
		cfg.EventMapper,
		cfg.OrderWriter,
		cfg.Validation.MaxWebhookBodySize,
		cfg.Production,
	)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["webhook"])
		r.Options("/v1/webhooks/stripe", webhookHandler.HandleEvent)
		r.Post("/v1/webhooks/stripe", webhookHandler.HandleEvent)
	})

	// Dashboard authentication
	sessionHandler := session.NewHandler(cfg.Logger, cfg.UsersRepo, cfg.BusinessesRepo, cfg.SessionService)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["auth"])
		r.Use(middleware.RequestSizeLimit(cfg.Validation.MaxRequestBodySize))
		r.Post("/v1/auth/register", sessionHandler.Register)
		r.Post("/v1/auth/login", sessionHandler.Login)
	})

	// Authenticated dashboard API
	ordersHandler := orders.NewHandler(cfg.Logger, cfg.OrdersRepo, cfg.CouriersRepo)
	couriersHandler := couriers.NewHandler(cfg.Logger, cfg.CouriersRepo)
	statsHandler := stats.NewHandler(cfg.Logger, cfg.OrdersRepo)
	settingsHandler := settings.NewHandler(cfg.Logger, cfg.BusinessesRepo, cfg.AppBaseURL)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["api"])
		r.Use(middleware.RequestSizeLimit(cfg.Validation.MaxRequestBodySize))
		r.Use(middleware.RequireSession(cfg.SessionService))

		r.Get("/v1/orders", ordersHandler.List)
		r.Post("/v1/orders", ordersHandler.Create)
		r.Get("/v1/orders/{orderID}", ordersHandler.Get)
		r.Patch("/v1/orders/{orderID}/status", ordersHandler.UpdateStatus)
		r.Post("/v1/orders/{orderID}/assign", ordersHandler.Assign)
		r.Delete("/v1/orders/{orderID}", ordersHandler.Delete)

		r.Get("/v1/couriers", couriersHandler.List)
		r.Post("/v1/couriers", couriersHandler.Create)
		r.Get("/v1/couriers/{courierID}", couriersHandler.Get)
		r.Put("/v1/couriers/{courierID}", couriersHandler.Update)
		r.Delete("/v1/couriers/{courierID}", couriersHandler.Delete)

		r.Get("/v1/stats", statsHandler.Get)

		r.Get("/v1/settings/webhook", settingsHandler.GetWebhook)
		r.Post("/v1/settings/webhook/rotate", settingsHandler.RotateWebhookSecret)
		r.Put("/v1/settings/stripe", settingsHandler.SetSigningSecret)
	})

	return r
}
