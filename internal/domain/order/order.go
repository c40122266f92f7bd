package order

import (
	"time"

	"github.com/cassiomorais/storepay/internal/domain/errors"
	"github.com/google/uuid"
)

// Status represents the order status in the state machine
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Order is the slice of the store's order that payment confirmation touches.
type Order struct {
	ID              uuid.UUID
	UserID          string
	Name            string
	TotalAmount     int64
	Status          Status
	PaymentAttempts int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewOrder creates a PENDING order awaiting payment confirmation.
func NewOrder(userID, name string, totalAmount int64) (*Order, error) {
	if userID == "" {
		return nil, errors.NewValidationError("user_id", "cannot be empty")
	}
	if totalAmount < 0 {
		return nil, errors.NewValidationError("total_amount", "must not be negative")
	}

	now := time.Now()
	return &Order{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        name,
		TotalAmount: totalAmount,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// CanTransitionTo checks if the order can transition to the given status
func (o *Order) CanTransitionTo(newStatus Status) bool {
	if o.Status != StatusPending {
		return false
	}
	return newStatus == StatusCompleted || newStatus == StatusFailed
}

// TransitionTo transitions the order to a new status
func (o *Order) TransitionTo(newStatus Status) error {
	if !o.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition order from "+string(o.Status)+" to "+string(newStatus),
			errors.ErrInvalidStateTransition,
		)
	}

	o.Status = newStatus
	o.UpdatedAt = time.Now()
	return nil
}

// RecordAttempt counts one confirmation call against the order.
func (o *Order) RecordAttempt() {
	o.PaymentAttempts++
	o.UpdatedAt = time.Now()
}

// IsTerminal reports whether reconciliation has nothing left to do.
func (o *Order) IsTerminal() bool {
	return o.Status == StatusCompleted || o.Status == StatusFailed
}
