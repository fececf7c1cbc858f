package ingest

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/yava-delivery/orderhub/pkg/domain"
)

// VerifyEvent validates the signature header against the raw request body
// using Stripe's official verification scheme and returns the decoded event.
//
// The payload must be the exact bytes received on the wire. Verifying a
// re-serialized body will fail even for legitimate deliveries.
func VerifyEvent(payload []byte, sigHeader, signingSecret string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, signingSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, classifySignatureError(err)
	}
	return event, nil
}

func classifySignatureError(err error) error {
	switch {
	case errors.Is(err, webhook.ErrNotSigned), errors.Is(err, webhook.ErrInvalidHeader):
		return fmt.Errorf("%w: %w", domain.ErrMalformedSignatureHeader, err)
	case errors.Is(err, webhook.ErrTooOld):
		return fmt.Errorf("%w: %w", domain.ErrSignatureStale, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrSignatureInvalid, err)
	}
}
