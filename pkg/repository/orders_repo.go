package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yava-delivery/orderhub/pkg/domain"
)

const orderColumns = `id, business_id, courier_id, customer_name, customer_phone, customer_address,
	       products, total_amount, delivery_time, status, source, notes,
	       stripe_session_id, stripe_invoice_id, stripe_subscription_id, created_at, updated_at`

// OrdersRepository handles order persistence.
type OrdersRepository struct {
	db *sql.DB
}

// NewOrdersRepository creates a new orders repository.
func NewOrdersRepository(db *sql.DB) *OrdersRepository {
	return &OrdersRepository{db: db}
}

// Create inserts a new order row.
func (r *OrdersRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (id, business_id, courier_id, customer_name, customer_phone, customer_address,
		                    products, total_amount, delivery_time, status, source, notes,
		                    stripe_session_id, stripe_invoice_id, stripe_subscription_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.db.ExecContext(ctx, query,
		order.ID, order.BusinessID, order.CourierID,
		order.CustomerName, order.CustomerPhone, order.CustomerAddress,
		order.Products, order.TotalAmount, order.DeliveryTime,
		order.Status, order.Source, order.Notes,
		order.StripeSessionID, order.StripeInvoiceID, order.StripeSubscriptionID,
		order.CreatedAt, order.UpdatedAt,
	)
	return err
}

// GetByID retrieves an order owned by the given business.
func (r *OrdersRepository) GetByID(ctx context.Context, businessID, id uuid.UUID) (*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE id = $1 AND business_id = $2
	`
	order := &domain.Order{}
	err := r.db.QueryRowContext(ctx, query, id, businessID).Scan(
		&order.ID, &order.BusinessID, &order.CourierID,
		&order.CustomerName, &order.CustomerPhone, &order.CustomerAddress,
		&order.Products, &order.TotalAmount, &order.DeliveryTime,
		&order.Status, &order.Source, &order.Notes,
		&order.StripeSessionID, &order.StripeInvoiceID, &order.StripeSubscriptionID,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListFilter narrows ListByBusiness results. Nil fields are not filtered on.
type ListFilter struct {
	Status *domain.OrderStatus
	Source *domain.OrderSource
}

// ListByBusiness returns the business's orders, newest first.
func (r *OrdersRepository) ListByBusiness(ctx context.Context, businessID uuid.UUID, filter ListFilter) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE business_id = $1
	`
	args := []interface{}{businessID}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Source != nil {
		args = append(args, *filter.Source)
		query += fmt.Sprintf(" AND source = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order := &domain.Order{}
		if err := rows.Scan(
			&order.ID, &order.BusinessID, &order.CourierID,
			&order.CustomerName, &order.CustomerPhone, &order.CustomerAddress,
			&order.Products, &order.TotalAmount, &order.DeliveryTime,
			&order.Status, &order.Source, &order.Notes,
			&order.StripeSessionID, &order.StripeInvoiceID, &order.StripeSubscriptionID,
			&order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// UpdateStatus moves an order to a new lifecycle status.
func (r *OrdersRepository) UpdateStatus(ctx context.Context, businessID, id uuid.UUID, status domain.OrderStatus) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND business_id = $3
	`
	return r.execExpectingRow(ctx, query, status, id, businessID)
}

// Assign sets the courier and marks the order assigned.
func (r *OrdersRepository) Assign(ctx context.Context, businessID, id, courierID uuid.UUID) error {
	query := `
		UPDATE orders
		SET courier_id = $1, status = $2, updated_at = NOW()
		WHERE id = $3 AND business_id = $4
	`
	return r.execExpectingRow(ctx, query, courierID, domain.StatusAssigned, id, businessID)
}

// Delete removes an order.
func (r *OrdersRepository) Delete(ctx context.Context, businessID, id uuid.UUID) error {
	query := `DELETE FROM orders WHERE id = $1 AND business_id = $2`
	return r.execExpectingRow(ctx, query, id, businessID)
}

// Stats aggregates a business's orders for the dashboard.
type Stats struct {
	TotalOrders    int64
	ByStatus       map[domain.OrderStatus]int64
	BySource       map[domain.OrderSource]int64
	TotalRevenue   float64
	RevenueToday   float64
	OrdersToday    int64
	DeliveredToday int64
}

// StatsByBusiness computes order aggregates in SQL.
func (r *OrdersRepository) StatsByBusiness(ctx context.Context, businessID uuid.UUID, now time.Time) (*Stats, error) {
	query := `
		SELECT status, source, COUNT(*), COALESCE(SUM(total_amount), 0),
		       COUNT(*) FILTER (WHERE created_at >= $2),
		       COALESCE(SUM(total_amount) FILTER (WHERE created_at >= $2), 0)
		FROM orders
		WHERE business_id = $1
		GROUP BY status, source
	`
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	rows, err := r.db.QueryContext(ctx, query, businessID, dayStart)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &Stats{
		ByStatus: make(map[domain.OrderStatus]int64),
		BySource: make(map[domain.OrderSource]int64),
	}
	for rows.Next() {
		var (
			status       domain.OrderStatus
			source       domain.OrderSource
			count        int64
			revenue      float64
			countToday   int64
			revenueToday float64
		)
		if err := rows.Scan(&status, &source, &count, &revenue, &countToday, &revenueToday); err != nil {
			return nil, err
		}
		stats.TotalOrders += count
		stats.ByStatus[status] += count
		stats.BySource[source] += count
		stats.OrdersToday += countToday
		if status != domain.StatusCancelled {
			stats.TotalRevenue += revenue
			stats.RevenueToday += revenueToday
		}
		if status == domain.StatusDelivered {
			stats.DeliveredToday += countToday
		}
	}
	return stats, rows.Err()
}

// CountByEventRef counts orders carrying the given session or invoice
// back-reference. The order writer uses it to flag event redelivery.
func (r *OrdersRepository) CountByEventRef(ctx context.Context, sessionID, invoiceID *string) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM orders
		WHERE ($1::text IS NULL OR stripe_session_id = $1)
		  AND ($2::text IS NULL OR stripe_invoice_id = $2)
	`
	var count int64
	err := r.db.QueryRowContext(ctx, query, sessionID, invoiceID).Scan(&count)
	return count, err
}

func (r *OrdersRepository) execExpectingRow(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}
