package stats

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/yava-delivery/orderhub/internal/http/middleware"
	"github.com/yava-delivery/orderhub/internal/httputil"
	"github.com/yava-delivery/orderhub/pkg/repository"
)

// StatsStore computes order aggregates for a business.
type StatsStore interface {
	StatsByBusiness(ctx context.Context, businessID uuid.UUID, now time.Time) (*repository.Stats, error)
}

// Handler handles the dashboard stats endpoint.
type Handler struct {
	logger *slog.Logger
	stats  StatsStore
	now    func() time.Time
}

// NewHandler creates a new stats handler.
func NewHandler(logger *slog.Logger, stats StatsStore) *Handler {
	return &Handler{logger: logger, stats: stats, now: time.Now}
}

// StatsResponse represents order aggregates for the dashboard.
type StatsResponse struct {
	TotalOrders    int64            `json:"total_orders"`
	ByStatus       map[string]int64 `json:"by_status"`
	BySource       map[string]int64 `json:"by_source"`
	TotalRevenue   float64          `json:"total_revenue"`
	OrdersToday    int64            `json:"orders_today"`
	RevenueToday   float64          `json:"revenue_today"`
	DeliveredToday int64            `json:"delivered_today"`
}

// Get handles the stats endpoint. Cancelled orders count toward volume but
// not revenue.
// GET /v1/stats
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	businessID, err := uuid.Parse(claims.BusinessID)
	if err != nil {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	stats, err := h.stats.StatsByBusiness(r.Context(), businessID, h.now())
	if err != nil {
		h.logger.Error("failed to compute stats", "business_id", businessID, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	resp := StatsResponse{
		TotalOrders:    stats.TotalOrders,
		ByStatus:       make(map[string]int64, len(stats.ByStatus)),
		BySource:       make(map[string]int64, len(stats.BySource)),
		TotalRevenue:   stats.TotalRevenue,
		OrdersToday:    stats.OrdersToday,
		RevenueToday:   stats.RevenueToday,
		DeliveredToday: stats.DeliveredToday,
	}
	for status, count := range stats.ByStatus {
		resp.ByStatus[string(status)] = count
	}
	for source, count := range stats.BySource {
		resp.BySource[string(source)] = count
	}
	httputil.JSON(w, http.StatusOK, resp)
}
