package ingest

import (
	"context"
	"errors"
	"log/slog"

	"github.com/yava-delivery/orderhub/pkg/domain"
)

// BusinessStore is the tenant lookup the resolver needs.
type BusinessStore interface {
	GetByWebhookSecret(ctx context.Context, secret string) (*domain.Business, error)
}

// ResolvedTenant is the outcome of routing-token resolution. Business is nil
// when the permissive fallback applied; SigningSecret is always usable.
type ResolvedTenant struct {
	Business      *domain.Business
	SigningSecret string
}

// Fallback reports whether resolution fell back to the default secret.
func (r ResolvedTenant) Fallback() bool {
	return r.Business == nil
}

// TenantResolver maps an opaque routing token to a business and its Stripe
// signing secret.
//
// Policy: when no business matches the token and a default signing secret is
// configured, resolution succeeds with a nil business so payment capture keeps
// working even when tenant provisioning is misconfigured. Orders produced
// under the fallback are attributed by the order writer. Without a default
// secret the request is rejected.
type TenantResolver struct {
	businesses     BusinessStore
	fallbackSecret string
	logger         *slog.Logger
}

// NewTenantResolver creates a new tenant resolver. fallbackSecret may be
// empty, which disables the permissive fallback.
func NewTenantResolver(businesses BusinessStore, fallbackSecret string, logger *slog.Logger) *TenantResolver {
	return &TenantResolver{
		businesses:     businesses,
		fallbackSecret: fallbackSecret,
		logger:         logger,
	}
}

// Resolve looks up the business owning the routing token.
func (r *TenantResolver) Resolve(ctx context.Context, routingToken string) (ResolvedTenant, error) {
	if routingToken == "" {
		return ResolvedTenant{}, domain.ErrRoutingSecretMissing
	}

	business, err := r.businesses.GetByWebhookSecret(ctx, routingToken)
	if err != nil {
		// Lookup failures degrade to not-found so the fallback path can still
		// capture the payment; the error itself is only logged.
		if !errors.Is(err, domain.ErrBusinessNotFound) {
			r.logger.Error("business lookup failed", "error", err)
		}
		if r.fallbackSecret == "" {
			if errors.Is(err, domain.ErrBusinessNotFound) {
				return ResolvedTenant{}, err
			}
			return ResolvedTenant{}, domain.ErrNoFallbackSecret
		}
		r.logger.Warn("business not found for routing token, verifying with default secret")
		return ResolvedTenant{SigningSecret: r.fallbackSecret}, nil
	}

	if !business.HasSigningSecret() {
		return ResolvedTenant{}, domain.ErrSigningSecretMissing
	}

	return ResolvedTenant{Business: business, SigningSecret: business.SigningSecret}, nil
}
