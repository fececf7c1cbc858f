package domain

import (
	"time"

	"github.com/google/uuid"
)

// Courier is a delivery person belonging to one business.
type Courier struct {
	ID         uuid.UUID
	BusinessID uuid.UUID
	Name       string
	Phone      string
	Email      string
	Vehicle    string
	Available  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}
