package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/yava-delivery/orderhub/internal/http/middleware"
	"github.com/yava-delivery/orderhub/pkg/auth"
	"github.com/yava-delivery/orderhub/pkg/domain"
	"github.com/yava-delivery/orderhub/pkg/repository"
)

type fakeOrderStore struct {
	orders map[uuid.UUID]*domain.Order
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[uuid.UUID]*domain.Order)}
}

func (f *fakeOrderStore) Create(_ context.Context, order *domain.Order) error {
	f.orders[order.ID] = order
	return nil
}

func (f *fakeOrderStore) GetByID(_ context.Context, businessID, id uuid.UUID) (*domain.Order, error) {
	order, ok := f.orders[id]
	if !ok || order.BusinessID != businessID {
		return nil, domain.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (f *fakeOrderStore) ListByBusiness(_ context.Context, businessID uuid.UUID, filter repository.ListFilter) ([]*domain.Order, error) {
	var result []*domain.Order
	for _, order := range f.orders {
		if order.BusinessID != businessID {
			continue
		}
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		if filter.Source != nil && order.Source != *filter.Source {
			continue
		}
		result = append(result, order)
	}
	return result, nil
}

func (f *fakeOrderStore) UpdateStatus(_ context.Context, businessID, id uuid.UUID, status domain.OrderStatus) error {
	order, ok := f.orders[id]
	if !ok || order.BusinessID != businessID {
		return domain.ErrOrderNotFound
	}
	order.Status = status
	return nil
}

func (f *fakeOrderStore) Assign(_ context.Context, businessID, id, courierID uuid.UUID) error {
	order, ok := f.orders[id]
	if !ok || order.BusinessID != businessID {
		return domain.ErrOrderNotFound
	}
	order.CourierID = &courierID
	order.Status = domain.StatusAssigned
	return nil
}

func (f *fakeOrderStore) Delete(_ context.Context, businessID, id uuid.UUID) error {
	order, ok := f.orders[id]
	if !ok || order.BusinessID != businessID {
		return domain.ErrOrderNotFound
	}
	delete(f.orders, id)
	return nil
}

type fakeCourierStore struct {
	couriers map[uuid.UUID]*domain.Courier
}

func (f *fakeCourierStore) GetByID(_ context.Context, businessID, id uuid.UUID) (*domain.Courier, error) {
	courier, ok := f.couriers[id]
	if !ok || courier.BusinessID != businessID {
		return nil, domain.ErrCourierNotFound
	}
	return courier, nil
}

type testEnv struct {
	router     http.Handler
	orders     *fakeOrderStore
	couriers   *fakeCourierStore
	token      string
	businessID uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	orders := newFakeOrderStore()
	couriers := &fakeCourierStore{couriers: make(map[uuid.UUID]*domain.Courier)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, orders, couriers)

	sessions := auth.NewSessionService("test-secret", "orderhub", time.Hour)
	businessID := uuid.New()
	token, _, err := sessions.IssueToken(&domain.User{ID: businessID, Email: "owner@example.com"}, businessID)
	if err != nil {
		t.Fatal(err)
	}

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(sessions))
		r.Get("/v1/orders", h.List)
		r.Post("/v1/orders", h.Create)
		r.Get("/v1/orders/{orderID}", h.Get)
		r.Patch("/v1/orders/{orderID}/status", h.UpdateStatus)
		r.Post("/v1/orders/{orderID}/assign", h.Assign)
		r.Delete("/v1/orders/{orderID}", h.Delete)
	})

	return &testEnv{router: r, orders: orders, couriers: couriers, token: token, businessID: businessID}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+e.token)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) seedOrder(status domain.OrderStatus) *domain.Order {
	order := &domain.Order{
		ID:           uuid.New(),
		BusinessID:   e.businessID,
		CustomerName: "Ana",
		Products:     domain.ProductList{{Name: "Pizza", Quantity: 1, Price: 12}},
		TotalAmount:  12,
		Status:       status,
		Source:       domain.SourceManual,
	}
	e.orders.orders[order.ID] = order
	return order
}

func TestCreateOrder(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/v1/orders", CreateRequest{
		CustomerName:    "Ana",
		CustomerPhone:   "+34 600 000 000",
		CustomerAddress: "Calle Mayor 1, Madrid",
		Products: []ProductPayload{
			{Name: "Margherita", Quantity: 2, Price: 10},
			{Name: "Tiramisu", Quantity: 1, Price: 5},
		},
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp OrderResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.TotalAmount != 25 {
		t.Errorf("total_amount = %v, want 25", resp.TotalAmount)
	}
	if resp.Status != string(domain.StatusPending) {
		t.Errorf("status = %q, want pending", resp.Status)
	}
	if resp.Source != string(domain.SourceManual) {
		t.Errorf("source = %q, want manual", resp.Source)
	}
	if time.Until(resp.DeliveryTime) < 23*time.Hour {
		t.Errorf("delivery_time should default to about a day out, got %v", resp.DeliveryTime)
	}
	if resp.CreatedAt.IsZero() || resp.UpdatedAt.IsZero() {
		t.Error("created order must carry non-zero timestamps")
	}
	if len(env.orders.orders) != 1 {
		t.Errorf("stored orders = %d, want 1", len(env.orders.orders))
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  CreateRequest
	}{
		{"missing name", CreateRequest{Products: []ProductPayload{{Name: "Pizza", Quantity: 1, Price: 10}}}},
		{"no products", CreateRequest{CustomerName: "Ana"}},
		{"zero quantity", CreateRequest{CustomerName: "Ana", Products: []ProductPayload{{Name: "Pizza", Quantity: 0, Price: 10}}}},
		{"negative price", CreateRequest{CustomerName: "Ana", Products: []ProductPayload{{Name: "Pizza", Quantity: 1, Price: -1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := env.do(t, "POST", "/v1/orders", tt.req); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestListOrders_Filters(t *testing.T) {
	env := newTestEnv(t)
	env.seedOrder(domain.StatusPending)
	env.seedOrder(domain.StatusDelivered)
	other := env.seedOrder(domain.StatusPending)
	other.Source = domain.SourceStripe

	t.Run("all", func(t *testing.T) {
		w := env.do(t, "GET", "/v1/orders", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var resp []OrderResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if len(resp) != 3 {
			t.Errorf("len = %d, want 3", len(resp))
		}
	})

	t.Run("by status", func(t *testing.T) {
		w := env.do(t, "GET", "/v1/orders?status=pending", nil)
		var resp []OrderResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if len(resp) != 2 {
			t.Errorf("len = %d, want 2", len(resp))
		}
	})

	t.Run("by source", func(t *testing.T) {
		w := env.do(t, "GET", "/v1/orders?source=stripe", nil)
		var resp []OrderResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if len(resp) != 1 {
			t.Errorf("len = %d, want 1", len(resp))
		}
	})

	t.Run("bad status filter", func(t *testing.T) {
		if w := env.do(t, "GET", "/v1/orders?status=bogus", nil); w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestGetOrder(t *testing.T) {
	env := newTestEnv(t)
	order := env.seedOrder(domain.StatusPending)

	w := env.do(t, "GET", "/v1/orders/"+order.ID.String(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	if w := env.do(t, "GET", "/v1/orders/"+uuid.NewString(), nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d, want 404", w.Code)
	}
	if w := env.do(t, "GET", "/v1/orders/not-a-uuid", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want 400", w.Code)
	}
}

func TestGetOrder_OtherBusinessInvisible(t *testing.T) {
	env := newTestEnv(t)
	foreign := env.seedOrder(domain.StatusPending)
	foreign.BusinessID = uuid.New()

	if w := env.do(t, "GET", "/v1/orders/"+foreign.ID.String(), nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestUpdateStatus(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		from domain.OrderStatus
		to   string
		want int
	}{
		{"pending to assigned", domain.StatusPending, "assigned", http.StatusOK},
		{"pending to cancelled", domain.StatusPending, "cancelled", http.StatusOK},
		{"assigned to in_route", domain.StatusAssigned, "in_route", http.StatusOK},
		{"in_route to delivered", domain.StatusInRoute, "delivered", http.StatusOK},
		{"pending to delivered", domain.StatusPending, "delivered", http.StatusConflict},
		{"delivered to pending", domain.StatusDelivered, "pending", http.StatusConflict},
		{"unknown status", domain.StatusPending, "exploded", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := env.seedOrder(tt.from)
			w := env.do(t, "PATCH", "/v1/orders/"+order.ID.String()+"/status", StatusRequest{Status: tt.to})
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestAssignOrder(t *testing.T) {
	env := newTestEnv(t)

	courier := &domain.Courier{ID: uuid.New(), BusinessID: env.businessID, Name: "Marco", Available: true}
	env.couriers.couriers[courier.ID] = courier
	busy := &domain.Courier{ID: uuid.New(), BusinessID: env.businessID, Name: "Lena", Available: false}
	env.couriers.couriers[busy.ID] = busy

	t.Run("assigns available courier", func(t *testing.T) {
		order := env.seedOrder(domain.StatusPending)
		w := env.do(t, "POST", "/v1/orders/"+order.ID.String()+"/assign", AssignRequest{CourierID: courier.ID.String()})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		var resp OrderResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Status != string(domain.StatusAssigned) {
			t.Errorf("status = %q, want assigned", resp.Status)
		}
		if resp.CourierID == nil || *resp.CourierID != courier.ID.String() {
			t.Errorf("courier_id = %v", resp.CourierID)
		}
	})

	t.Run("rejects unavailable courier", func(t *testing.T) {
		order := env.seedOrder(domain.StatusPending)
		w := env.do(t, "POST", "/v1/orders/"+order.ID.String()+"/assign", AssignRequest{CourierID: busy.ID.String()})
		if w.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", w.Code)
		}
	})

	t.Run("rejects delivered order", func(t *testing.T) {
		order := env.seedOrder(domain.StatusDelivered)
		w := env.do(t, "POST", "/v1/orders/"+order.ID.String()+"/assign", AssignRequest{CourierID: courier.ID.String()})
		if w.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", w.Code)
		}
	})

	t.Run("unknown courier", func(t *testing.T) {
		order := env.seedOrder(domain.StatusPending)
		w := env.do(t, "POST", "/v1/orders/"+order.ID.String()+"/assign", AssignRequest{CourierID: uuid.NewString()})
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})
}

func TestDeleteOrder(t *testing.T) {
	env := newTestEnv(t)
	order := env.seedOrder(domain.StatusPending)

	if w := env.do(t, "DELETE", "/v1/orders/"+order.ID.String(), nil); w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if w := env.do(t, "DELETE", "/v1/orders/"+order.ID.String(), nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want 404", w.Code)
	}
}

func TestOrders_RequireAuth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("GET", "/v1/orders", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
