package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/yava-delivery/orderhub/pkg/domain"
)

const courierColumns = `id, business_id, name, phone, email, vehicle, available, created_at, updated_at, deleted_at`

// CouriersRepository handles delivery-person persistence.
type CouriersRepository struct {
	db *sql.DB
}

// NewCouriersRepository creates a new couriers repository.
func NewCouriersRepository(db *sql.DB) *CouriersRepository {
	return &CouriersRepository{db: db}
}

// Create creates a new courier.
func (r *CouriersRepository) Create(ctx context.Context, courier *domain.Courier) error {
	query := `
		INSERT INTO couriers (id, business_id, name, phone, email, vehicle, available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		courier.ID, courier.BusinessID, courier.Name, courier.Phone, courier.Email,
		courier.Vehicle, courier.Available, courier.CreatedAt, courier.UpdatedAt,
	)
	return err
}

// GetByID retrieves a courier owned by the given business.
func (r *CouriersRepository) GetByID(ctx context.Context, businessID, id uuid.UUID) (*domain.Courier, error) {
	query := `
		SELECT ` + courierColumns + `
		FROM couriers
		WHERE id = $1 AND business_id = $2 AND deleted_at IS NULL
	`
	courier := &domain.Courier{}
	err := r.db.QueryRowContext(ctx, query, id, businessID).Scan(
		&courier.ID, &courier.BusinessID, &courier.Name, &courier.Phone, &courier.Email,
		&courier.Vehicle, &courier.Available, &courier.CreatedAt, &courier.UpdatedAt, &courier.DeletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCourierNotFound
	}
	if err != nil {
		return nil, err
	}
	return courier, nil
}

// ListByBusiness returns the business's couriers.
func (r *CouriersRepository) ListByBusiness(ctx context.Context, businessID uuid.UUID, onlyAvailable bool) ([]*domain.Courier, error) {
	query := `
		SELECT ` + courierColumns + `
		FROM couriers
		WHERE business_id = $1 AND deleted_at IS NULL
	`
	if onlyAvailable {
		query += " AND available"
	}
	query += " ORDER BY name"

	rows, err := r.db.QueryContext(ctx, query, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var couriers []*domain.Courier
	for rows.Next() {
		courier := &domain.Courier{}
		if err := rows.Scan(
			&courier.ID, &courier.BusinessID, &courier.Name, &courier.Phone, &courier.Email,
			&courier.Vehicle, &courier.Available, &courier.CreatedAt, &courier.UpdatedAt, &courier.DeletedAt,
		); err != nil {
			return nil, err
		}
		couriers = append(couriers, courier)
	}
	return couriers, rows.Err()
}

// Update updates a courier's profile and availability.
func (r *CouriersRepository) Update(ctx context.Context, courier *domain.Courier) error {
	query := `
		UPDATE couriers
		SET name = $1, phone = $2, email = $3, vehicle = $4, available = $5, updated_at = NOW()
		WHERE id = $6 AND business_id = $7 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		courier.Name, courier.Phone, courier.Email, courier.Vehicle, courier.Available,
		courier.ID, courier.BusinessID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrCourierNotFound
	}
	return nil
}

// SoftDelete soft deletes a courier.
func (r *CouriersRepository) SoftDelete(ctx context.Context, businessID, id uuid.UUID) error {
	query := `
		UPDATE couriers
		SET deleted_at = NOW()
		WHERE id = $1 AND business_id = $2 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, id, businessID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrCourierNotFound
	}
	return nil
}
