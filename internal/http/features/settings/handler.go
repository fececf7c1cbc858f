package settings

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/yava-delivery/orderhub/internal/http/middleware"
	"github.com/yava-delivery/orderhub/internal/httputil"
	"github.com/yava-delivery/orderhub/pkg/auth"
	"github.com/yava-delivery/orderhub/pkg/domain"
)

// BusinessStore is the business settings surface the handler needs.
type BusinessStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Business, error)
	UpdateWebhookSecret(ctx context.Context, id uuid.UUID, secret string) error
	UpdateSigningSecret(ctx context.Context, id uuid.UUID, secret string) error
}

// Handler handles webhook settings endpoints.
type Handler struct {
	logger     *slog.Logger
	businesses BusinessStore
	baseURL    string
}

// NewHandler creates a new settings handler. baseURL is the externally
// reachable origin used to render the webhook URL.
func NewHandler(logger *slog.Logger, businesses BusinessStore, baseURL string) *Handler {
	return &Handler{logger: logger, businesses: businesses, baseURL: baseURL}
}

// WebhookSettingsResponse describes the business's Stripe wiring.
type WebhookSettingsResponse struct {
	WebhookURL           string `json:"webhook_url"`
	WebhookSecret        string `json:"webhook_secret"`
	SigningSecretPresent bool   `json:"signing_secret_present"`
}

// SigningSecretRequest carries a Stripe endpoint signing secret.
type SigningSecretRequest struct {
	SigningSecret string `json:"signing_secret"`
}

// GetWebhook handles reading the current webhook settings.
// GET /v1/settings/webhook
func (h *Handler) GetWebhook(w http.ResponseWriter, r *http.Request) {
	business, ok := h.loadBusiness(w, r)
	if !ok {
		return
	}
	httputil.JSON(w, http.StatusOK, h.toResponse(business))
}

// RotateWebhookSecret handles regenerating the routing token. The old
// token stops resolving immediately, so the Stripe endpoint URL must be
// updated right after.
// POST /v1/settings/webhook/rotate
func (h *Handler) RotateWebhookSecret(w http.ResponseWriter, r *http.Request) {
	business, ok := h.loadBusiness(w, r)
	if !ok {
		return
	}

	secret, err := auth.GenerateSecret(24)
	if err != nil {
		h.logger.Error("failed to generate webhook secret", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to rotate webhook secret")
		return
	}
	if err := h.businesses.UpdateWebhookSecret(r.Context(), business.ID, secret); err != nil {
		h.logger.Error("failed to store webhook secret", "business_id", business.ID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to rotate webhook secret")
		return
	}

	business.WebhookSecret = secret
	httputil.JSON(w, http.StatusOK, h.toResponse(business))
}

// SetSigningSecret handles storing the Stripe endpoint signing secret.
// PUT /v1/settings/stripe
func (h *Handler) SetSigningSecret(w http.ResponseWriter, r *http.Request) {
	business, ok := h.loadBusiness(w, r)
	if !ok {
		return
	}

	var req SigningSecretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !strings.HasPrefix(req.SigningSecret, domain.SigningSecretPrefix) {
		httputil.Error(w, http.StatusBadRequest, "signing secret must start with whsec_")
		return
	}

	if err := h.businesses.UpdateSigningSecret(r.Context(), business.ID, req.SigningSecret); err != nil {
		h.logger.Error("failed to store signing secret", "business_id", business.ID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to store signing secret")
		return
	}

	business.SigningSecret = req.SigningSecret
	httputil.JSON(w, http.StatusOK, h.toResponse(business))
}

func (h *Handler) toResponse(business *domain.Business) WebhookSettingsResponse {
	return WebhookSettingsResponse{
		WebhookURL:           h.baseURL + "/v1/webhooks/stripe?secret=" + business.WebhookSecret,
		WebhookSecret:        business.WebhookSecret,
		SigningSecretPresent: business.HasSigningSecret(),
	}
}

func (h *Handler) loadBusiness(w http.ResponseWriter, r *http.Request) (*domain.Business, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	businessID, err := uuid.Parse(claims.BusinessID)
	if err != nil {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}

	business, err := h.businesses.GetByID(r.Context(), businessID)
	if err != nil {
		if errors.Is(err, domain.ErrBusinessNotFound) {
			httputil.Error(w, http.StatusNotFound, "business not found")
			return nil, false
		}
		h.logger.Error("failed to load business", "business_id", businessID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to load business")
		return nil, false
	}
	return business, true
}
