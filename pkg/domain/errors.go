package domain

import "errors"

// Lookup errors
var (
	ErrBusinessNotFound = errors.New("business not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrCourierNotFound  = errors.New("courier not found")
	ErrUserNotFound     = errors.New("user not found")
)

// Webhook verification errors
var (
	ErrSignatureInvalid          = errors.New("webhook signature verification failed")
	ErrSignatureStale            = errors.New("webhook timestamp outside tolerance window")
	ErrMalformedSignatureHeader  = errors.New("webhook signature header missing or unparseable")
	ErrRoutingSecretMissing      = errors.New("webhook routing secret not provided")
	ErrSigningSecretMissing      = errors.New("business has no Stripe signing secret configured")
	ErrNoFallbackSecret          = errors.New("no default Stripe webhook secret configured")
)

// Persistence errors
var (
	ErrWriteFailed = errors.New("order write failed")
)

// Validation errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidStatus      = errors.New("invalid order status")
	ErrInvalidTransition  = errors.New("order status transition not allowed")
	ErrCourierUnavailable = errors.New("courier is not available")
)
