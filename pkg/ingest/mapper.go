package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/yava-delivery/orderhub/pkg/domain"
)

const (
	defaultCustomerName     = "Unnamed customer"
	subscriptionCustomer    = "Subscription customer"
	defaultAddress          = "No address"
	genericProductName      = "Stripe product"
	subscriptionProductName = "Stripe subscription"

	defaultDeliveryDelay = 24 * time.Hour
)

// PaymentClient is the slice of the Stripe API the mapper depends on.
type PaymentClient interface {
	ListLineItems(ctx context.Context, sessionID string) ([]*stripe.LineItem, error)
	GetCustomer(ctx context.Context, customerID string) (*stripe.Customer, error)
}

// Candidate is an order produced by event mapping, not yet persisted.
// Optional candidates are best-effort: a write failure is logged and skipped
// instead of failing the whole event.
type Candidate struct {
	Order    domain.Order
	Optional bool
}

// Mapper converts verified Stripe events into candidate orders.
type Mapper struct {
	payments PaymentClient
	logger   *slog.Logger
	now      func() time.Time
}

// NewMapper creates a new event mapper.
func NewMapper(payments PaymentClient, logger *slog.Logger) *Mapper {
	return &Mapper{payments: payments, logger: logger, now: time.Now}
}

// Lean payload shapes decoded from event.Data.Raw. Only the fields the
// mapping consumes are declared; everything else in the Stripe payload is
// ignored on purpose.

type addressPayload struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

type shippingPayload struct {
	Name    string         `json:"name"`
	Address addressPayload `json:"address"`
}

type checkoutSessionPayload struct {
	ID              string            `json:"id"`
	Mode            string            `json:"mode"`
	Customer        string            `json:"customer"`
	Subscription    string            `json:"subscription"`
	AmountTotal     int64             `json:"amount_total"`
	Currency        string            `json:"currency"`
	PaymentStatus   string            `json:"payment_status"`
	Metadata        map[string]string `json:"metadata"`
	CustomerDetails struct {
		Name    string         `json:"name"`
		Email   string         `json:"email"`
		Phone   string         `json:"phone"`
		Address addressPayload `json:"address"`
	} `json:"customer_details"`
	// Newer API versions report shipping under collected_information; older
	// ones used a top-level shipping object. Both are honored.
	CollectedInformation struct {
		IndividualName  string          `json:"individual_name"`
		ShippingDetails shippingPayload `json:"shipping_details"`
	} `json:"collected_information"`
	Shipping shippingPayload `json:"shipping"`
}

type invoicePayload struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	AmountPaid   int64  `json:"amount_paid"`
	Currency     string `json:"currency"`
	Lines        struct {
		Data []struct {
			Description string `json:"description"`
			Amount      int64  `json:"amount"`
			Quantity    int64  `json:"quantity"`
		} `json:"data"`
	} `json:"lines"`
}

// MapEvent dispatches on the event type and returns zero or more candidate
// orders. Unhandled event types yield no candidates and no error so the
// platform does not retry them.
func (m *Mapper) MapEvent(ctx context.Context, event *stripe.Event, business *domain.Business) ([]Candidate, error) {
	switch event.Type {
	case "checkout.session.completed":
		var session checkoutSessionPayload
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		if session.Mode == "subscription" {
			return []Candidate{m.mapSubscriptionCheckout(session, business)}, nil
		}
		return []Candidate{m.mapCheckout(ctx, session, business)}, nil

	case "invoice.paid":
		var invoice invoicePayload
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		return m.mapInvoice(ctx, invoice, business), nil

	default:
		m.logger.Info("ignoring unhandled event type", "type", event.Type, "event_id", event.ID)
		return nil, nil
	}
}

// mapCheckout builds a single order from a completed one-time checkout.
func (m *Mapper) mapCheckout(ctx context.Context, session checkoutSessionPayload, business *domain.Business) Candidate {
	totalAmount := minorToMajor(session.AmountTotal)

	products := m.sessionProducts(ctx, session.ID)
	if len(products) == 0 || products[0].Price == 0 {
		products = domain.ProductList{{Name: genericProductName, Quantity: 1, Price: totalAmount}}
	}

	now := m.now()
	sessionID := session.ID
	order := domain.Order{
		ID:              uuid.New(),
		BusinessID:      m.businessID(business, session.Metadata),
		CustomerName:    session.customerName(),
		CustomerPhone:   session.customerPhone(),
		CustomerAddress: session.customerAddress(),
		Products:        products,
		TotalAmount:     totalAmount,
		DeliveryTime:    m.deliveryTime(session.Metadata),
		Status:          domain.StatusPending,
		Source:          domain.SourceStripe,
		Notes:           optionalString(session.Metadata["notes"]),
		StripeSessionID: &sessionID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return Candidate{Order: order}
}

// mapSubscriptionCheckout produces a lightweight placeholder order so a
// subscription start is visible before the first invoice.paid arrives. It is
// Optional: authoritative orders come from the invoice event.
func (m *Mapper) mapSubscriptionCheckout(session checkoutSessionPayload, business *domain.Business) Candidate {
	totalAmount := minorToMajor(session.AmountTotal)

	name := session.customerName()
	if name == defaultCustomerName {
		name = subscriptionCustomer
	}

	now := m.now()
	notes := fmt.Sprintf("Initial subscription - session %s, subscription %s", session.ID, session.Subscription)
	sessionID := session.ID
	order := domain.Order{
		ID:              uuid.New(),
		BusinessID:      m.businessID(business, session.Metadata),
		CustomerName:    name,
		CustomerPhone:   session.customerPhone(),
		CustomerAddress: session.customerAddress(),
		Products:        domain.ProductList{{Name: subscriptionProductName, Quantity: 1, Price: totalAmount}},
		TotalAmount:     totalAmount,
		DeliveryTime:    now.Add(defaultDeliveryDelay),
		Status:          domain.StatusPending,
		Source:          domain.SourceStripeSubscription,
		Notes:           &notes,
		StripeSessionID: &sessionID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if session.Subscription != "" {
		sub := session.Subscription
		order.StripeSubscriptionID = &sub
	}
	return Candidate{Order: order, Optional: true}
}

// mapInvoice expands each invoice line of quantity N into N single-unit
// orders so every physical delivery has exactly one order row.
func (m *Mapper) mapInvoice(ctx context.Context, invoice invoicePayload, business *domain.Business) []Candidate {
	if len(invoice.Lines.Data) == 0 {
		m.logger.Info("invoice has no line items, skipping order creation", "invoice_id", invoice.ID)
		return nil
	}

	name, phone, address := m.customerProfile(ctx, invoice.Customer)
	businessID := m.businessID(business, nil)
	notes := fmt.Sprintf("Subscription - invoice %s", invoice.ID)
	now := m.now()

	var candidates []Candidate
	for _, line := range invoice.Lines.Data {
		unitPrice := minorToMajor(line.Amount)
		productName := line.Description
		if productName == "" {
			productName = subscriptionProductName
		}

		quantity := line.Quantity
		if quantity < 1 {
			quantity = 1
		}
		for i := int64(0); i < quantity; i++ {
			invoiceID := invoice.ID
			order := domain.Order{
				ID:              uuid.New(),
				BusinessID:      businessID,
				CustomerName:    name,
				CustomerPhone:   phone,
				CustomerAddress: address,
				Products:        domain.ProductList{{Name: productName, Quantity: 1, Price: unitPrice}},
				TotalAmount:     unitPrice,
				DeliveryTime:    now.Add(defaultDeliveryDelay),
				Status:          domain.StatusPending,
				Source:          domain.SourceStripeSubscription,
				Notes:           &notes,
				StripeInvoiceID: &invoiceID,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if invoice.Subscription != "" {
				sub := invoice.Subscription
				order.StripeSubscriptionID = &sub
			}
			candidates = append(candidates, Candidate{Order: order})
		}
	}
	return candidates
}

// sessionProducts fetches the session's line items. Failures degrade to an
// empty list so a listing hiccup never blocks order creation.
func (m *Mapper) sessionProducts(ctx context.Context, sessionID string) domain.ProductList {
	items, err := m.payments.ListLineItems(ctx, sessionID)
	if err != nil {
		m.logger.Error("failed to fetch line items", "session_id", sessionID, "error", err)
		return nil
	}

	var products domain.ProductList
	for _, item := range items {
		quantity := item.Quantity
		if quantity < 1 {
			quantity = 1
		}

		name := item.Description
		if name == "" && item.Price != nil && item.Price.Product != nil {
			name = item.Price.Product.Name
		}
		if name == "" {
			name = genericProductName
		}

		// Unit price, not line total: prefer the price object, otherwise
		// divide the line total across its quantity.
		var unitMinor int64
		if item.Price != nil && item.Price.UnitAmount > 0 {
			unitMinor = item.Price.UnitAmount
		} else {
			unitMinor = item.AmountTotal / quantity
		}

		products = append(products, domain.Product{
			Name:     name,
			Quantity: quantity,
			Price:    minorToMajor(unitMinor),
		})
	}
	return products
}

// customerProfile retrieves the paying customer's contact details, degrading
// to placeholders on any lookup failure.
func (m *Mapper) customerProfile(ctx context.Context, customerID string) (name, phone, address string) {
	name, phone, address = defaultCustomerName, "", defaultAddress
	if customerID == "" {
		return name, phone, address
	}

	customer, err := m.payments.GetCustomer(ctx, customerID)
	if err != nil {
		m.logger.Error("failed to retrieve customer", "customer_id", customerID, "error", err)
		return name, phone, address
	}

	if customer.Name != "" {
		name = customer.Name
	} else if customer.Email != "" {
		name = customer.Email
	}
	phone = customer.Phone
	if customer.Address != nil {
		if formatted := joinAddress(customer.Address.Line1, customer.Address.Line2,
			customer.Address.City, customer.Address.State, customer.Address.PostalCode); formatted != "" {
			address = formatted
		}
	}
	return name, phone, address
}

func (m *Mapper) businessID(business *domain.Business, metadata map[string]string) uuid.UUID {
	if business != nil {
		return business.ID
	}
	if hint := metadata["business_id"]; hint != "" {
		if id, err := uuid.Parse(hint); err == nil {
			return id
		}
		m.logger.Warn("ignoring unparseable business_id metadata", "business_id", hint)
	}
	return uuid.Nil
}

func (m *Mapper) deliveryTime(metadata map[string]string) time.Time {
	if raw := metadata["delivery_time"]; raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
		m.logger.Warn("ignoring unparseable delivery_time metadata", "delivery_time", raw)
	}
	return m.now().Add(defaultDeliveryDelay)
}

func (s checkoutSessionPayload) customerName() string {
	for _, candidate := range []string{
		s.Metadata["customer_name"],
		s.CollectedInformation.IndividualName,
		s.CustomerDetails.Name,
	} {
		if candidate != "" {
			return candidate
		}
	}
	return defaultCustomerName
}

func (s checkoutSessionPayload) customerPhone() string {
	if phone := s.Metadata["customer_phone"]; phone != "" {
		return phone
	}
	return s.CustomerDetails.Phone
}

func (s checkoutSessionPayload) customerAddress() string {
	if address := s.Metadata["customer_address"]; address != "" {
		return address
	}

	shipping := s.CollectedInformation.ShippingDetails.Address
	if shipping.Line1 == "" {
		shipping = s.Shipping.Address
	}
	if shipping.Line1 == "" {
		return defaultAddress
	}
	return joinAddress(shipping.Line1, shipping.Line2, shipping.City, shipping.State, shipping.PostalCode)
}

// joinAddress drops empty components and joins the rest with ", ".
func joinAddress(parts ...string) string {
	var kept []string
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, ", ")
}

func minorToMajor(amount int64) float64 {
	return float64(amount) / 100
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
