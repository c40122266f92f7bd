package order

import (
	"context"

	"github.com/cassiomorais/storepay/internal/domain/outbox"
	"github.com/cassiomorais/storepay/internal/infrastructure/confirmation"
)

// TransactionManager defines the interface for transaction management.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// OutboxWriter defines the interface for writing to the transactional outbox.
type OutboxWriter interface {
	Insert(ctx context.Context, entry *outbox.Entry) error
}

// Confirmer asks the payment processing peer to settle an order. A
// StatusPending answer means the peer could not be reached; its Fallback
// says why.
type Confirmer interface {
	Confirm(ctx context.Context, req confirmation.ConfirmRequest) (confirmation.Result, error)
}
