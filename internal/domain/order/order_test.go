package order_test

import (
	"testing"

	"github.com/cassiomorais/storepay/internal/domain/errors"
	"github.com/cassiomorais/storepay/internal/domain/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder(t *testing.T) {
	o, err := order.NewOrder("user-1", "Gift box", 5000)
	require.NoError(t, err)

	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, int64(5000), o.TotalAmount)
	assert.Equal(t, 0, o.PaymentAttempts)
	assert.False(t, o.IsTerminal())
}

func TestNewOrder_Invalid(t *testing.T) {
	_, err := order.NewOrder("", "Gift box", 5000)
	assert.ErrorIs(t, err, errors.ErrInvalidRequest)

	_, err = order.NewOrder("user-1", "Gift box", -5)
	assert.ErrorIs(t, err, errors.ErrInvalidRequest)
}

func TestOrder_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    order.Status
		to      order.Status
		allowed bool
	}{
		{"pending to completed", order.StatusPending, order.StatusCompleted, true},
		{"pending to failed", order.StatusPending, order.StatusFailed, true},
		{"completed to failed", order.StatusCompleted, order.StatusFailed, false},
		{"failed to completed", order.StatusFailed, order.StatusCompleted, false},
		{"pending to pending", order.StatusPending, order.StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &order.Order{Status: tt.from}
			err := o.TransitionTo(tt.to)
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, tt.to, o.Status)
				assert.True(t, o.IsTerminal())
			} else {
				assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)
				assert.Equal(t, tt.from, o.Status)
			}
		})
	}
}

func TestOrder_RecordAttempt(t *testing.T) {
	o, err := order.NewOrder("user-1", "Gift box", 100)
	require.NoError(t, err)

	o.RecordAttempt()
	o.RecordAttempt()
	assert.Equal(t, 2, o.PaymentAttempts)
}
