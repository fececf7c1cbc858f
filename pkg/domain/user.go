package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the login identity behind a business dashboard account. The
// ingestion path only creates one when it has to provision a fallback
// business; everything else about account management lives elsewhere.
type User struct {
	ID            uuid.UUID
	Email         string
	Name          *string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// UserPassword stores password credentials separately from the user profile.
type UserPassword struct {
	UserID            uuid.UUID
	PasswordHash      string
	PasswordUpdatedAt time.Time
}
