package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yava-delivery/orderhub/internal/config"
	httpserver "github.com/yava-delivery/orderhub/internal/http"
	"github.com/yava-delivery/orderhub/internal/metrics"
	"github.com/yava-delivery/orderhub/pkg/auth"
	"github.com/yava-delivery/orderhub/pkg/ingest"
	"github.com/yava-delivery/orderhub/pkg/repository"
	"github.com/yava-delivery/orderhub/pkg/stripeapi"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := repository.NewDB(repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database")

	// Register Prometheus metrics
	metrics.Register()

	// Initialize repositories
	usersRepo := repository.NewUsersRepository(db)
	businessesRepo := repository.NewBusinessesRepository(db)
	ordersRepo := repository.NewOrdersRepository(db)
	couriersRepo := repository.NewCouriersRepository(db)

	// Initialize services
	sessionService := auth.NewSessionService(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL)
	stripeClient := stripeapi.New(cfg.StripeSecretKey)

	tenantResolver := ingest.NewTenantResolver(businessesRepo, cfg.StripeDefaultSigningSecret, logger)
	eventMapper := ingest.NewMapper(stripeClient, logger)
	orderWriter := ingest.NewOrderWriter(ordersRepo, businessesRepo, usersRepo, logger)

	if cfg.StripeDefaultSigningSecret == "" {
		logger.Warn("no default signing secret configured, webhooks with unknown routing tokens will be rejected")
	}

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:          logger,
		SessionService:  sessionService,
		TenantResolver:  tenantResolver,
		EventMapper:     eventMapper,
		OrderWriter:     orderWriter,
		UsersRepo:       usersRepo,
		BusinessesRepo:  businessesRepo,
		OrdersRepo:      ordersRepo,
		CouriersRepo:    couriersRepo,
		AppBaseURL:      cfg.AppBaseURL,
		RateLimitConfig: cfg.RateLimit,
		SecurityHeaders: cfg.SecurityHeaders,
		Validation:      cfg.Validation,
		Production:      cfg.IsProduction(),
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
