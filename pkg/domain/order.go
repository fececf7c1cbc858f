package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the delivery lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusAssigned  OrderStatus = "assigned"
	StatusInRoute   OrderStatus = "in_route"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusInRoute, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// statusTransitions lists the allowed forward transitions. Cancellation is
// allowed from any non-terminal state.
var statusTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:  {StatusAssigned, StatusCancelled},
	StatusAssigned: {StatusInRoute, StatusPending, StatusCancelled},
	StatusInRoute:  {StatusDelivered, StatusCancelled},
}

// CanTransition reports whether an order may move from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderSource records where an order came from.
type OrderSource string

const (
	SourceManual             OrderSource = "manual"
	SourceStripe             OrderSource = "stripe"
	SourceStripeSubscription OrderSource = "stripe_subscription"
)

// Product is one purchased line within an order. Price is in major currency
// units (Stripe minor-unit amounts divided by 100).
type Product struct {
	Name     string  `json:"name"`
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
}

// ProductList is stored as a JSONB column on orders.
type ProductList []Product

// Value implements driver.Valuer.
func (p ProductList) Value() (driver.Value, error) {
	if p == nil {
		p = ProductList{}
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner.
func (p *ProductList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("unsupported products column type %T", src)
	}
}

// Total returns the sum of quantity times unit price over all products.
func (p ProductList) Total() float64 {
	var total float64
	for _, item := range p {
		total += float64(item.Quantity) * item.Price
	}
	return total
}

// Order is a single delivery unit owned by one business.
//
// Orders sourced from a subscription invoice are denormalized to one row per
// product unit so each physical delivery corresponds to exactly one order.
type Order struct {
	ID              uuid.UUID
	BusinessID      uuid.UUID
	CourierID       *uuid.UUID
	CustomerName    string
	CustomerPhone   string
	CustomerAddress string
	Products        ProductList
	TotalAmount     float64
	DeliveryTime    time.Time
	Status          OrderStatus
	Source          OrderSource
	Notes           *string

	// Back-references to the originating Stripe objects, when any.
	StripeSessionID      *string
	StripeInvoiceID      *string
	StripeSubscriptionID *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
