package payment

import "context"

// Repository is the durable payment ledger.
type Repository interface {
	// Create inserts a new record and assigns its ID. A second record for
	// the same receipt fails with ErrDuplicateReceipt.
	Create(ctx context.Context, record *Record) error

	// GetByReceiptID returns ErrPaymentNotFound when no record matches.
	GetByReceiptID(ctx context.Context, receiptID string) (*Record, error)

	// GetByOrderID returns the most recent record for an order.
	GetByOrderID(ctx context.Context, orderID string) (*Record, error)

	// ListByPayer returns a payer's records, newest first.
	ListByPayer(ctx context.Context, payerEmail string) ([]*Record, error)

	// Update persists a status transition and the raw response.
	Update(ctx context.Context, record *Record) error
}
