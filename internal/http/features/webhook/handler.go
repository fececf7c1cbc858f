package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"

	"github.com/yava-delivery/orderhub/internal/http/middleware"
	"github.com/yava-delivery/orderhub/internal/httputil"
	"github.com/yava-delivery/orderhub/internal/metrics"
	"github.com/yava-delivery/orderhub/pkg/domain"
	"github.com/yava-delivery/orderhub/pkg/ingest"
)

// Resolver resolves the routing token on the webhook URL to a tenant.
type Resolver interface {
	Resolve(ctx context.Context, routingToken string) (ingest.ResolvedTenant, error)
}

// EventMapper turns a verified Stripe event into order candidates.
type EventMapper interface {
	MapEvent(ctx context.Context, event *stripe.Event, business *domain.Business) ([]ingest.Candidate, error)
}

// CandidateWriter persists order candidates.
type CandidateWriter interface {
	Write(ctx context.Context, candidates []ingest.Candidate) ([]uuid.UUID, error)
}

// VerifyFunc checks a webhook payload against its Stripe-Signature header.
type VerifyFunc func(payload []byte, sigHeader, signingSecret string) (stripe.Event, error)

// Handler handles the Stripe webhook endpoint.
type Handler struct {
	logger      *slog.Logger
	resolver    Resolver
	verify      VerifyFunc
	mapper      EventMapper
	writer      CandidateWriter
	maxBodySize int64
	production  bool
}

// NewHandler creates a new webhook handler.
func NewHandler(
	logger *slog.Logger,
	resolver Resolver,
	mapper EventMapper,
	writer CandidateWriter,
	maxBodySize int64,
	production bool,
) *Handler {
	return &Handler{
		logger:      logger,
		resolver:    resolver,
		verify:      ingest.VerifyEvent,
		mapper:      mapper,
		writer:      writer,
		maxBodySize: maxBodySize,
		production:  production,
	}
}

// ReceiptResponse acknowledges a processed event. Stripe only cares about
// the status code; the body helps when replaying deliveries by hand.
type ReceiptResponse struct {
	Received bool   `json:"received"`
	Business string `json:"business"`
	Orders   int    `json:"orders"`
	EventID  string `json:"event_id,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	EventID string `json:"event_id,omitempty"`
}

// HandleEvent processes a Stripe webhook delivery.
// POST /v1/webhooks/stripe?secret=<routing token>
//
// The routing token selects the business whose signing secret verifies the
// payload. Unknown tokens fall back to the default signing secret when one
// is configured.
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		httputil.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	start := time.Now()
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			metrics.WebhookEventsRejectedTotal.WithLabelValues("oversized").Inc()
		}
		if middleware.HandleMaxBytesError(w, err) {
			return
		}
		httputil.Error(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	token := r.URL.Query().Get("secret")
	if token == "" {
		token = r.Header.Get("X-Webhook-Token")
	}

	tenant, err := h.resolver.Resolve(ctx, token)
	if err != nil {
		h.logger.Warn("webhook tenant resolution failed", "error", err)
		metrics.WebhookEventsRejectedTotal.WithLabelValues("routing").Inc()
		h.writeError(w, err, "")
		return
	}
	if tenant.Fallback() {
		metrics.WebhookFallbackEventsTotal.Inc()
	}

	event, err := h.verify(payload, r.Header.Get("Stripe-Signature"), tenant.SigningSecret)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		metrics.WebhookEventsRejectedTotal.WithLabelValues("signature").Inc()
		h.writeError(w, err, "")
		return
	}

	metrics.WebhookEventsTotal.WithLabelValues(string(event.Type)).Inc()
	h.logger.Info("webhook event verified",
		"event_id", event.ID,
		"event_type", event.Type,
		"fallback", tenant.Fallback(),
	)

	candidates, err := h.mapper.MapEvent(ctx, &event, tenant.Business)
	if err != nil {
		h.logger.Error("webhook event mapping failed", "event_id", event.ID, "error", err)
		metrics.WebhookEventsRejectedTotal.WithLabelValues("payload").Inc()
		h.writeError(w, err, event.ID)
		return
	}

	ids, err := h.writer.Write(ctx, candidates)
	for range ids {
		source := domain.SourceStripe
		if event.Type == "invoice.paid" {
			source = domain.SourceStripeSubscription
		}
		metrics.OrdersCreatedTotal.WithLabelValues(string(source)).Inc()
	}
	if err != nil {
		h.logger.Error("webhook order write failed",
			"event_id", event.ID,
			"created", len(ids),
			"error", err,
		)
		metrics.OrderWriteFailuresTotal.Inc()
		h.writeError(w, err, event.ID)
		return
	}

	metrics.WebhookProcessingDuration.Observe(time.Since(start).Seconds())

	httputil.JSON(w, http.StatusOK, ReceiptResponse{
		Received: true,
		Business: businessLabel(tenant),
		Orders:   len(ids),
		EventID:  event.ID,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error, eventID string) {
	status, message := classify(err)
	resp := errorResponse{Error: message, EventID: eventID}
	if !h.production {
		resp.Details = err.Error()
	}
	httputil.JSON(w, status, resp)
}

// classify maps processing errors to an HTTP status. Signature and routing
// problems are the caller's fault; storage problems are retryable.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrRoutingSecretMissing),
		errors.Is(err, domain.ErrBusinessNotFound),
		errors.Is(err, domain.ErrSigningSecretMissing),
		errors.Is(err, domain.ErrMalformedSignatureHeader),
		errors.Is(err, domain.ErrSignatureStale),
		errors.Is(err, domain.ErrSignatureInvalid):
		return http.StatusBadRequest, "webhook verification failed"
	case errors.Is(err, domain.ErrWriteFailed),
		errors.Is(err, domain.ErrNoFallbackSecret):
		return http.StatusServiceUnavailable, "storage unavailable, retry later"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func businessLabel(tenant ingest.ResolvedTenant) string {
	if tenant.Business != nil {
		return tenant.Business.Name
	}
	return "fallback"
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Stripe-Signature, X-Webhook-Token")
}
