package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/yava-delivery/orderhub/pkg/domain"
)

// UsersRepository handles login-identity persistence.
type UsersRepository struct {
	db *sql.DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

// Create creates a new user.
func (r *UsersRepository) Create(ctx context.Context, user *domain.User) error {
	return r.CreateTx(ctx, r.db, user)
}

// CreateTx creates a new user within a transaction.
func (r *UsersRepository) CreateTx(ctx context.Context, q Querier, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, name, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := q.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.EmailVerified, user.CreatedAt, user.UpdatedAt,
	)
	return err
}

// GetByEmail retrieves a user by email.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, email, name, email_verified, created_at, updated_at, deleted_at
		FROM users
		WHERE email = $1 AND deleted_at IS NULL
	`
	user := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID, &user.Email, &user.Name, &user.EmailVerified,
		&user.CreatedAt, &user.UpdatedAt, &user.DeletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SetPassword upserts the user's password hash.
func (r *UsersRepository) SetPassword(ctx context.Context, userID uuid.UUID, hash string) error {
	query := `
		INSERT INTO user_passwords (user_id, password_hash, password_updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET password_hash = EXCLUDED.password_hash, password_updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, userID, hash)
	return err
}

// GetPassword retrieves the user's password credentials.
func (r *UsersRepository) GetPassword(ctx context.Context, userID uuid.UUID) (*domain.UserPassword, error) {
	query := `
		SELECT user_id, password_hash, password_updated_at
		FROM user_passwords
		WHERE user_id = $1
	`
	pwd := &domain.UserPassword{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&pwd.UserID, &pwd.PasswordHash, &pwd.PasswordUpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return pwd, nil
}
