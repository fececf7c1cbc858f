package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SigningSecretPrefix is the prefix Stripe uses for webhook signing secrets.
const SigningSecretPrefix = "whsec_"

// Business represents a tenant operating its own delivery orders.
//
// WebhookSecret is the routing secret embedded in the webhook URL; it only
// locates the business. SigningSecret is the Stripe signing secret used to
// verify payload authenticity. Both are managed by the settings surface;
// the ingestion path only reads them.
type Business struct {
	ID            uuid.UUID
	Name          string
	Email         string
	WebhookSecret string
	SigningSecret string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// HasSigningSecret reports whether a usable Stripe signing secret is set.
func (b *Business) HasSigningSecret() bool {
	return strings.HasPrefix(b.SigningSecret, SigningSecretPrefix)
}
