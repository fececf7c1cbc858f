package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/yava-delivery/orderhub/pkg/domain"
)

const businessColumns = `id, name, email, webhook_secret, stripe_signing_secret, created_at, updated_at, deleted_at`

// BusinessesRepository handles business (tenant) persistence.
type BusinessesRepository struct {
	db *sql.DB
}

// NewBusinessesRepository creates a new businesses repository.
func NewBusinessesRepository(db *sql.DB) *BusinessesRepository {
	return &BusinessesRepository{db: db}
}

// Create creates a new business.
func (r *BusinessesRepository) Create(ctx context.Context, business *domain.Business) error {
	return r.CreateTx(ctx, r.db, business)
}

// CreateTx creates a new business within a transaction.
func (r *BusinessesRepository) CreateTx(ctx context.Context, q Querier, business *domain.Business) error {
	query := `
		INSERT INTO businesses (id, name, email, webhook_secret, stripe_signing_secret, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q.ExecContext(ctx, query,
		business.ID,
		business.Name,
		business.Email,
		business.WebhookSecret,
		business.SigningSecret,
		business.CreatedAt,
		business.UpdatedAt,
	)
	return err
}

// GetByID retrieves a business by ID.
func (r *BusinessesRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Business, error) {
	query := `
		SELECT ` + businessColumns + `
		FROM businesses
		WHERE id = $1 AND deleted_at IS NULL
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByWebhookSecret retrieves a business by exact match on its routing secret.
func (r *BusinessesRepository) GetByWebhookSecret(ctx context.Context, secret string) (*domain.Business, error) {
	query := `
		SELECT ` + businessColumns + `
		FROM businesses
		WHERE webhook_secret = $1 AND deleted_at IS NULL
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, secret))
}

// GetByEmail retrieves a business by contact email.
func (r *BusinessesRepository) GetByEmail(ctx context.Context, email string) (*domain.Business, error) {
	query := `
		SELECT ` + businessColumns + `
		FROM businesses
		WHERE email = $1 AND deleted_at IS NULL
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

// First returns the oldest business in the system, if any. The order writer
// uses it to attribute payment-sourced orders when no tenant context exists.
func (r *BusinessesRepository) First(ctx context.Context) (*domain.Business, error) {
	query := `
		SELECT ` + businessColumns + `
		FROM businesses
		WHERE deleted_at IS NULL
		ORDER BY created_at
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query))
}

// UpdateWebhookSecret replaces the routing secret.
func (r *BusinessesRepository) UpdateWebhookSecret(ctx context.Context, id uuid.UUID, secret string) error {
	return r.updateColumn(ctx, id, "webhook_secret", secret)
}

// UpdateSigningSecret replaces the Stripe signing secret.
func (r *BusinessesRepository) UpdateSigningSecret(ctx context.Context, id uuid.UUID, secret string) error {
	return r.updateColumn(ctx, id, "stripe_signing_secret", secret)
}

func (r *BusinessesRepository) updateColumn(ctx context.Context, id uuid.UUID, column, value string) error {
	query := `
		UPDATE businesses
		SET ` + column + ` = $1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, value, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrBusinessNotFound
	}
	return nil
}

func (r *BusinessesRepository) scanOne(row *sql.Row) (*domain.Business, error) {
	var business domain.Business
	err := row.Scan(
		&business.ID,
		&business.Name,
		&business.Email,
		&business.WebhookSecret,
		&business.SigningSecret,
		&business.CreatedAt,
		&business.UpdatedAt,
		&business.DeletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBusinessNotFound
	}
	if err != nil {
		return nil, err
	}
	return &business, nil
}
