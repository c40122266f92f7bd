package order

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, order *Order) error

	// GetByID returns ErrOrderNotFound when no order matches.
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// Update persists status and attempt counter changes.
	Update(ctx context.Context, order *Order) error
}
