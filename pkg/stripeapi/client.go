// Package stripeapi adapts the official Stripe client to the narrow surface
// the ingestion mapper consumes.
package stripeapi

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// Client wraps a stripe-go API client. Construct one per process and inject
// it wherever a PaymentClient is needed.
type Client struct {
	api *client.API
}

// New creates a Stripe API client with the given secret key.
func New(apiKey string) *Client {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &Client{api: api}
}

// lineItemPageSize bounds ListLineItems to a single page. The iterator
// would otherwise keep fetching pages.
const lineItemPageSize = 100

// ListLineItems returns up to one page (100 items) of a checkout session's
// line items.
func (c *Client) ListLineItems(ctx context.Context, sessionID string) ([]*stripe.LineItem, error) {
	params := &stripe.CheckoutSessionListLineItemsParams{
		Session: stripe.String(sessionID),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(lineItemPageSize)

	var items []*stripe.LineItem
	iter := c.api.CheckoutSessions.ListLineItems(params)
	for iter.Next() {
		items = append(items, iter.LineItem())
		if len(items) == lineItemPageSize {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list line items for session %s: %w", sessionID, err)
	}
	return items, nil
}

// GetCustomer retrieves a customer by id.
func (c *Client) GetCustomer(ctx context.Context, customerID string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	customer, err := c.api.Customers.Get(customerID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve customer %s: %w", customerID, err)
	}
	return customer, nil
}
