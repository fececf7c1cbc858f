package ingest

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/yava-delivery/orderhub/pkg/domain"
)

const (
	fallbackBusinessName  = "Default business (Stripe)"
	fallbackBusinessEmail = "stripe-default@yava.app"
)

// OrderStore persists orders.
type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	CountByEventRef(ctx context.Context, sessionID, invoiceID *string) (int64, error)
}

// BusinessProvisioner is the business access the writer needs for
// just-in-time tenant resolution.
type BusinessProvisioner interface {
	First(ctx context.Context) (*domain.Business, error)
	Create(ctx context.Context, business *domain.Business) error
}

// IdentityStore creates login identities for provisioned businesses.
type IdentityStore interface {
	Create(ctx context.Context, user *domain.User) error
}

// OrderWriter persists candidate orders, resolving a business id just in time
// when mapping could not produce one.
//
// Rather than dropping payment-derived orders with missing tenant context,
// the writer self-heals: it attributes them to the single existing business,
// or provisions a placeholder business (and its login identity) on first use.
type OrderWriter struct {
	orders     OrderStore
	businesses BusinessProvisioner
	users      IdentityStore
	logger     *slog.Logger
}

// NewOrderWriter creates a new order writer.
func NewOrderWriter(orders OrderStore, businesses BusinessProvisioner, users IdentityStore, logger *slog.Logger) *OrderWriter {
	return &OrderWriter{orders: orders, businesses: businesses, users: users, logger: logger}
}

// Write persists each candidate sequentially and returns the created order
// ids. A failure on a required candidate aborts the remaining writes and is
// reported alongside the ids already created; Optional candidate failures are
// logged and skipped. There is no multi-row transaction: partial success is
// expected under at-least-once delivery.
func (w *OrderWriter) Write(ctx context.Context, candidates []Candidate) ([]uuid.UUID, error) {
	var (
		created    []uuid.UUID
		fallbackID uuid.UUID
	)

	w.observeRedelivery(ctx, candidates)

	for _, candidate := range candidates {
		order := candidate.Order

		if order.BusinessID == uuid.Nil {
			if fallbackID == uuid.Nil {
				id, err := w.defaultBusiness(ctx)
				if err != nil {
					if candidate.Optional {
						w.logger.Warn("skipping optional order, no fallback business", "error", err)
						continue
					}
					return created, fmt.Errorf("%w: resolve fallback business: %w", domain.ErrWriteFailed, err)
				}
				fallbackID = id
			}
			order.BusinessID = fallbackID
		}

		if err := w.orders.Create(ctx, &order); err != nil {
			if candidate.Optional {
				w.logger.Warn("failed to create optional order", "order_id", order.ID, "error", err)
				continue
			}
			return created, fmt.Errorf("%w: %w", domain.ErrWriteFailed, err)
		}

		created = append(created, order.ID)
		w.logger.Info("order created",
			"order_id", order.ID,
			"business_id", order.BusinessID,
			"source", order.Source,
			"total_amount", order.TotalAmount,
		)
	}

	return created, nil
}

// observeRedelivery logs when orders from the same checkout session or
// invoice already exist. There is no idempotency ledger, so a redelivered
// event creates duplicate rows; the log line is how operators spot them.
func (w *OrderWriter) observeRedelivery(ctx context.Context, candidates []Candidate) {
	var sessionID, invoiceID *string
	for _, candidate := range candidates {
		if candidate.Order.StripeSessionID != nil {
			sessionID = candidate.Order.StripeSessionID
		}
		if candidate.Order.StripeInvoiceID != nil {
			invoiceID = candidate.Order.StripeInvoiceID
		}
	}
	if sessionID == nil && invoiceID == nil {
		return
	}

	count, err := w.orders.CountByEventRef(ctx, sessionID, invoiceID)
	if err != nil {
		w.logger.Warn("failed to check for prior orders", "error", err)
		return
	}
	if count > 0 {
		w.logger.Warn("orders already exist for this event, redelivery will duplicate them",
			"existing_orders", count,
			"session_id", stringOrEmpty(sessionID),
			"invoice_id", stringOrEmpty(invoiceID),
		)
	}
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// defaultBusiness returns the single pre-existing business if one exists, and
// otherwise provisions a placeholder business with a login identity.
func (w *OrderWriter) defaultBusiness(ctx context.Context) (uuid.UUID, error) {
	existing, err := w.businesses.First(ctx)
	if err == nil {
		w.logger.Info("attributing order to existing business", "business_id", existing.ID, "name", existing.Name)
		return existing.ID, nil
	}
	if !errors.Is(err, domain.ErrBusinessNotFound) {
		return uuid.Nil, err
	}

	routingSecret, err := randomSecret()
	if err != nil {
		return uuid.Nil, err
	}

	now := time.Now().UTC()
	name := fallbackBusinessName
	user := &domain.User{
		ID:        uuid.New(),
		Email:     fallbackBusinessEmail,
		Name:      &name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := w.users.Create(ctx, user); err != nil {
		return uuid.Nil, fmt.Errorf("create fallback identity: %w", err)
	}

	// The business shares the identity's id, mirroring tenant onboarding.
	business := &domain.Business{
		ID:            user.ID,
		Name:          fallbackBusinessName,
		Email:         fallbackBusinessEmail,
		WebhookSecret: routingSecret,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := w.businesses.Create(ctx, business); err != nil {
		return uuid.Nil, fmt.Errorf("create fallback business: %w", err)
	}

	w.logger.Info("provisioned fallback business", "business_id", business.ID)
	return business.ID, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate routing secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
