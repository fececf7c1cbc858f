package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/yava-delivery/orderhub/internal/http/middleware"
	"github.com/yava-delivery/orderhub/internal/httputil"
	"github.com/yava-delivery/orderhub/pkg/domain"
	"github.com/yava-delivery/orderhub/pkg/repository"
)

const defaultDeliveryDelay = 24 * time.Hour

// OrderStore is the order persistence surface the handler needs.
type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, businessID, id uuid.UUID) (*domain.Order, error)
	ListByBusiness(ctx context.Context, businessID uuid.UUID, filter repository.ListFilter) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, businessID, id uuid.UUID, status domain.OrderStatus) error
	Assign(ctx context.Context, businessID, id, courierID uuid.UUID) error
	Delete(ctx context.Context, businessID, id uuid.UUID) error
}

// CourierStore is the courier lookup surface used when assigning orders.
type CourierStore interface {
	GetByID(ctx context.Context, businessID, id uuid.UUID) (*domain.Courier, error)
}

// Handler handles order management endpoints.
type Handler struct {
	logger   *slog.Logger
	orders   OrderStore
	couriers CourierStore
}

// NewHandler creates a new orders handler.
func NewHandler(logger *slog.Logger, orders OrderStore, couriers CourierStore) *Handler {
	return &Handler{logger: logger, orders: orders, couriers: couriers}
}

// CreateRequest represents a manual order creation request.
type CreateRequest struct {
	CustomerName    string           `json:"customer_name"`
	CustomerPhone   string           `json:"customer_phone"`
	CustomerAddress string           `json:"customer_address"`
	Products        []ProductPayload `json:"products"`
	DeliveryTime    *time.Time       `json:"delivery_time,omitempty"`
	Notes           *string          `json:"notes,omitempty"`
}

// ProductPayload is one purchased line in a create request.
type ProductPayload struct {
	Name     string  `json:"name"`
	Quantity int64   `json:"quantity"`
	Price    float64 `json:"price"`
}

// StatusRequest represents a status transition request.
type StatusRequest struct {
	Status string `json:"status"`
}

// AssignRequest represents a courier assignment request.
type AssignRequest struct {
	CourierID string `json:"courier_id"`
}

// OrderResponse represents an order in API responses.
type OrderResponse struct {
	ID              string           `json:"id"`
	CourierID       *string          `json:"courier_id,omitempty"`
	CustomerName    string           `json:"customer_name"`
	CustomerPhone   string           `json:"customer_phone"`
	CustomerAddress string           `json:"customer_address"`
	Products        []ProductPayload `json:"products"`
	TotalAmount     float64          `json:"total_amount"`
	DeliveryTime    time.Time        `json:"delivery_time"`
	Status          string           `json:"status"`
	Source          string           `json:"source"`
	Notes           *string          `json:"notes,omitempty"`
	StripeSessionID *string          `json:"stripe_session_id,omitempty"`
	StripeInvoiceID *string          `json:"stripe_invoice_id,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func toResponse(order *domain.Order) OrderResponse {
	products := make([]ProductPayload, 0, len(order.Products))
	for _, p := range order.Products {
		products = append(products, ProductPayload{Name: p.Name, Quantity: p.Quantity, Price: p.Price})
	}
	resp := OrderResponse{
		ID:              order.ID.String(),
		CustomerName:    order.CustomerName,
		CustomerPhone:   order.CustomerPhone,
		CustomerAddress: order.CustomerAddress,
		Products:        products,
		TotalAmount:     order.TotalAmount,
		DeliveryTime:    order.DeliveryTime,
		Status:          string(order.Status),
		Source:          string(order.Source),
		Notes:           order.Notes,
		StripeSessionID: order.StripeSessionID,
		StripeInvoiceID: order.StripeInvoiceID,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	if order.CourierID != nil {
		id := order.CourierID.String()
		resp.CourierID = &id
	}
	return resp
}

// List handles order listing with optional status and source filters.
// GET /v1/orders?status=pending&source=stripe
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}

	var filter repository.ListFilter
	if status := r.URL.Query().Get("status"); status != "" {
		s := domain.OrderStatus(status)
		if !s.Valid() {
			httputil.Error(w, http.StatusBadRequest, "unknown status filter")
			return
		}
		filter.Status = &s
	}
	if source := r.URL.Query().Get("source"); source != "" {
		s := domain.OrderSource(source)
		filter.Source = &s
	}

	orders, err := h.orders.ListByBusiness(r.Context(), businessID, filter)
	if err != nil {
		h.logger.Error("failed to list orders", "business_id", businessID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	resp := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		resp = append(resp, toResponse(order))
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// Get handles fetching a single order.
// GET /v1/orders/{orderID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, err := h.orders.GetByID(r.Context(), businessID, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			httputil.Error(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("failed to load order", "order_id", orderID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	httputil.JSON(w, http.StatusOK, toResponse(order))
}

// Create handles manual order creation from the dashboard.
// POST /v1/orders
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CustomerName == "" {
		httputil.Error(w, http.StatusBadRequest, "customer_name is required")
		return
	}
	if len(req.Products) == 0 {
		httputil.Error(w, http.StatusBadRequest, "at least one product is required")
		return
	}

	products := make(domain.ProductList, 0, len(req.Products))
	for _, p := range req.Products {
		if p.Name == "" || p.Quantity <= 0 || p.Price < 0 {
			httputil.Error(w, http.StatusBadRequest, "invalid product line")
			return
		}
		products = append(products, domain.Product{Name: p.Name, Quantity: p.Quantity, Price: p.Price})
	}

	now := time.Now().UTC()
	deliveryTime := now.Add(defaultDeliveryDelay)
	if req.DeliveryTime != nil {
		deliveryTime = req.DeliveryTime.UTC()
	}

	order := &domain.Order{
		ID:              uuid.New(),
		BusinessID:      businessID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerAddress: req.CustomerAddress,
		Products:        products,
		TotalAmount:     products.Total(),
		DeliveryTime:    deliveryTime,
		Status:          domain.StatusPending,
		Source:          domain.SourceManual,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := h.orders.Create(r.Context(), order); err != nil {
		h.logger.Error("failed to create order", "business_id", businessID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to create order")
		return
	}

	httputil.JSON(w, http.StatusCreated, toResponse(order))
}

// UpdateStatus handles lifecycle transitions.
// PATCH /v1/orders/{orderID}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	next := domain.OrderStatus(req.Status)
	if !next.Valid() {
		httputil.Error(w, http.StatusBadRequest, "unknown status")
		return
	}

	order, err := h.orders.GetByID(r.Context(), businessID, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			httputil.Error(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("failed to load order", "order_id", orderID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to update order")
		return
	}

	if !order.Status.CanTransition(next) {
		httputil.Error(w, http.StatusConflict, "invalid status transition")
		return
	}

	if err := h.orders.UpdateStatus(r.Context(), businessID, orderID, next); err != nil {
		h.logger.Error("failed to update order status", "order_id", orderID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to update order")
		return
	}

	order.Status = next
	httputil.JSON(w, http.StatusOK, toResponse(order))
}

// Assign handles courier assignment. Only pending orders can be assigned,
// and the courier must be marked available.
// POST /v1/orders/{orderID}/assign
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	courierID, err := uuid.Parse(req.CourierID)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid courier id")
		return
	}

	order, err := h.orders.GetByID(r.Context(), businessID, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			httputil.Error(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("failed to load order", "order_id", orderID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to assign order")
		return
	}
	if !order.Status.CanTransition(domain.StatusAssigned) {
		httputil.Error(w, http.StatusConflict, "order cannot be assigned in its current status")
		return
	}

	courier, err := h.couriers.GetByID(r.Context(), businessID, courierID)
	if err != nil {
		if errors.Is(err, domain.ErrCourierNotFound) {
			httputil.Error(w, http.StatusNotFound, "courier not found")
			return
		}
		h.logger.Error("failed to load courier", "courier_id", courierID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to assign order")
		return
	}
	if !courier.Available {
		httputil.Error(w, http.StatusConflict, "courier is not available")
		return
	}

	if err := h.orders.Assign(r.Context(), businessID, orderID, courierID); err != nil {
		h.logger.Error("failed to assign order", "order_id", orderID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to assign order")
		return
	}

	order.Status = domain.StatusAssigned
	order.CourierID = &courierID
	httputil.JSON(w, http.StatusOK, toResponse(order))
}

// Delete handles order deletion.
// DELETE /v1/orders/{orderID}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid order id")
		return
	}

	if err := h.orders.Delete(r.Context(), businessID, orderID); err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			httputil.Error(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("failed to delete order", "order_id", orderID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to delete order")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func businessFromContext(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, false
	}
	businessID, err := uuid.Parse(claims.BusinessID)
	if err != nil {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, false
	}
	return businessID, true
}
