package couriers

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
)

// CourierStore is the courier persistence surface the handler needs.
type CourierStore interface {
	Create(ctx context.Context, courier *domain.Courier) error
	GetByID(ctx context.Context, businessID, id uuid.UUID) (*domain.Courier, error)
	ListByBusiness(ctx context.Context, businessID uuid.UUID, onlyAvailable bool) ([]*domain.Courier, error)
	Update(ctx context.Context, courier *domain.Courier) error
	SoftDelete(ctx context.Context, businessID, id uuid.UUID) error
}

// Handler handles courier management endpoints.
type Handler struct {
	logger   *slog.Logger
	couriers CourierStore
}

// NewHandler creates a new couriers handler.
func NewHandler(logger *slog.Logger, couriers CourierStore) *Handler {
	return &Handler{logger: logger, couriers: couriers}
}

// CourierRequest represents a courier create or update request.
type CourierRequest struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Vehicle   string `json:"vehicle"`
	Available *bool  `json:"available,omitempty"`
}

// CourierResponse represents a courier in API responses.
type CourierResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Vehicle   string    `json:"vehicle"`
	Available bool      `json:"available"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toResponse(courier *domain.Courier) CourierResponse {
	return CourierResponse{
		ID:        courier.ID.String(),
		Name:      courier.Name,
		Phone:     courier.Phone,
		Email:     courier.Email,
		Vehicle:   courier.Vehicle,
		Available: courier.Available,
		CreatedAt: courier.CreatedAt,
		UpdatedAt: courier.UpdatedAt,
	}
}

// List handles courier listing.
// GET /v1/couriers?available=true
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}

	onlyAvailable := r.URL.Query().Get("available") == "true"
	couriers, err := h.couriers.ListByBusiness(r.Context(), businessID, onlyAvailable)
	if err != nil {
		h.logger.Error("failed to list couriers", "business_id", businessID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to list couriers")
		return
	}

	resp := make([]CourierResponse, 0, len(couriers))
	for _, courier := range couriers {
		resp = append(resp, toResponse(courier))
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// Get handles fetching a single courier.
// GET /v1/couriers/{courierID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}
	courierID, err := uuid.Parse(chi.URLParam(r, "courierID"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid courier id")
		return
	}

	courier, err := h.couriers.GetByID(r.Context(), businessID, courierID)
	if err != nil {
		if errors.Is(err, domain.ErrCourierNotFound) {
			httputil.Error(w, http.StatusNotFound, "courier not found")
			return
		}
		h.logger.Error("failed to load courier", "courier_id", courierID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to load courier")
		return
	}
	httputil.JSON(w, http.StatusOK, toResponse(courier))
}

// Create handles courier creation. New couriers start available unless the
// request says otherwise.
// POST /v1/couriers
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}

	var req CourierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		httputil.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	available := true
	if req.Available != nil {
		available = *req.Available
	}

	now := time.Now().UTC()
	courier := &domain.Courier{
		ID:         uuid.New(),
		BusinessID: businessID,
		Name:       req.Name,
		Phone:      req.Phone,
		Email:      req.Email,
		Vehicle:    req.Vehicle,
		Available:  available,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.couriers.Create(r.Context(), courier); err != nil {
		h.logger.Error("failed to create courier", "business_id", businessID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to create courier")
		return
	}

	httputil.JSON(w, http.StatusCreated, toResponse(courier))
}

// Update handles courier updates, including availability toggles.
// PUT /v1/couriers/{courierID}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}
	courierID, err := uuid.Parse(chi.URLParam(r, "courierID"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid courier id")
		return
	}

	var req CourierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	courier, err := h.couriers.GetByID(r.Context(), businessID, courierID)
	if err != nil {
		if errors.Is(err, domain.ErrCourierNotFound) {
			httputil.Error(w, http.StatusNotFound, "courier not found")
			return
		}
		h.logger.Error("failed to load courier", "courier_id", courierID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to update courier")
		return
	}

	if req.Name != "" {
		courier.Name = req.Name
	}
	if req.Phone != "" {
		courier.Phone = req.Phone
	}
	if req.Email != "" {
		courier.Email = req.Email
	}
	if req.Vehicle != "" {
		courier.Vehicle = req.Vehicle
	}
	if req.Available != nil {
		courier.Available = *req.Available
	}

	if err := h.couriers.Update(r.Context(), courier); err != nil {
		h.logger.Error("failed to update courier", "courier_id", courierID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to update courier")
		return
	}
	httputil.JSON(w, http.StatusOK, toResponse(courier))
}

// Delete handles courier removal. The row is kept for order history.
// DELETE /v1/couriers/{courierID}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessFromContext(w, r)
	if !ok {
		return
	}
	courierID, err := uuid.Parse(chi.URLParam(r, "courierID"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid courier id")
		return
	}

	if err := h.couriers.SoftDelete(r.Context(), businessID, courierID); err != nil {
		if errors.Is(err, domain.ErrCourierNotFound) {
			httputil.Error(w, http.StatusNotFound, "courier not found")
			return
		}
		h.logger.Error("failed to delete courier", "courier_id", courierID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to delete courier")
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
