package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/yava-delivery/orderhub/internal/httputil"
	"github.com/yava-delivery/orderhub/pkg/auth"
	"github.com/yava-delivery/orderhub/pkg/domain"
)

// UserStore is the identity surface the login flow needs.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	SetPassword(ctx context.Context, userID uuid.UUID, hash string) error
	GetPassword(ctx context.Context, userID uuid.UUID) (*domain.UserPassword, error)
}

// BusinessStore is the business surface the login flow needs.
type BusinessStore interface {
	Create(ctx context.Context, business *domain.Business) error
	GetByEmail(ctx context.Context, email string) (*domain.Business, error)
}

// Handler handles dashboard authentication endpoints.
type Handler struct {
	logger     *slog.Logger
	users      UserStore
	businesses BusinessStore
	sessions   *auth.SessionService
}

// NewHandler creates a new session handler.
func NewHandler(logger *slog.Logger, users UserStore, businesses BusinessStore, sessions *auth.SessionService) *Handler {
	return &Handler{
		logger:     logger,
		users:      users,
		businesses: businesses,
		sessions:   sessions,
	}
}

// RegisterRequest represents an account registration request.
type RegisterRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	BusinessName string `json:"business_name"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse represents a successful authentication.
type TokenResponse struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	ExpiresAt   int64            `json:"expires_at"`
	Business    BusinessResponse `json:"business"`
}

// BusinessResponse is the business summary returned on authentication.
type BusinessResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// Register handles account registration. The business shares the user's id
// so the webhook fallback provisioning and the dashboard agree on ownership.
// POST /v1/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}
	if len(req.Password) < 8 {
		httputil.Error(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	businessName := req.BusinessName
	if businessName == "" {
		businessName = req.Email
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "registration failed")
		return
	}

	now := time.Now().UTC()
	user := &domain.User{ID: uuid.New(), Email: req.Email, CreatedAt: now, UpdatedAt: now}
	if req.Name != "" {
		user.Name = &req.Name
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		h.logger.Error("failed to create user", "email", req.Email, "error", err)
		httputil.Error(w, http.StatusConflict, "account already exists")
		return
	}
	if err := h.users.SetPassword(r.Context(), user.ID, hash); err != nil {
		h.logger.Error("failed to store password", "user_id", user.ID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "registration failed")
		return
	}

	webhookSecret, err := auth.GenerateSecret(24)
	if err != nil {
		h.logger.Error("failed to generate webhook secret", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "registration failed")
		return
	}

	business := &domain.Business{
		ID:            user.ID,
		Name:          businessName,
		Email:         req.Email,
		WebhookSecret: webhookSecret,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := h.businesses.Create(r.Context(), business); err != nil {
		h.logger.Error("failed to create business", "user_id", user.ID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "registration failed")
		return
	}

	token, expiresAt, err := h.sessions.IssueToken(user, business.ID)
	if err != nil {
		h.logger.Error("failed to issue token", "user_id", user.ID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "registration failed")
		return
	}

	httputil.JSON(w, http.StatusCreated, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt.Unix(),
		Business: BusinessResponse{
			ID:            business.ID.String(),
			Name:          business.Name,
			WebhookSecret: business.WebhookSecret,
		},
	})
}

// Login handles dashboard login.
// POST /v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.logger.Error("user lookup failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "login failed")
		return
	}

	credentials, err := h.users.GetPassword(r.Context(), user.ID)
	if err != nil {
		httputil.Error(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	ok, err := auth.VerifyPassword(req.Password, credentials.PasswordHash)
	if err != nil || !ok {
		httputil.Error(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	business, err := h.businesses.GetByEmail(r.Context(), user.Email)
	if err != nil {
		if errors.Is(err, domain.ErrBusinessNotFound) {
			httputil.Error(w, http.StatusForbidden, "no business linked to this account")
			return
		}
		h.logger.Error("business lookup failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "login failed")
		return
	}

	token, expiresAt, err := h.sessions.IssueToken(user, business.ID)
	if err != nil {
		h.logger.Error("failed to issue token", "user_id", user.ID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "login failed")
		return
	}

	httputil.JSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt.Unix(),
		Business: BusinessResponse{
			ID:   business.ID.String(),
			Name: business.Name,
		},
	})
}
