package order

import (
	"context"
	"fmt"

	"github.com/cassiomorais/storepay/internal/domain/order"
	"github.com/cassiomorais/storepay/internal/domain/outbox"
	"github.com/cassiomorais/storepay/internal/infrastructure/confirmation"
	"github.com/cassiomorais/storepay/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// settler runs one confirmation attempt for a PENDING order and persists
// the outcome. Orders left PENDING get an order.payment_pending event so
// the reconciler picks them up.
type settler struct {
	orderRepo   order.Repository
	outboxRepo  OutboxWriter
	txManager   TransactionManager
	confirmer   Confirmer
	maxAttempts int
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

func (s *settler) settle(ctx context.Context, o *order.Order) error {
	res, err := s.confirmer.Confirm(ctx, confirmation.ConfirmRequest{
		OrderID:   o.ID.String(),
		OrderName: o.Name,
		Amount:    o.TotalAmount,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("order_id", o.ID.String()).Msg("payment confirmation failed, order stays pending")
		res = confirmation.Result{Status: confirmation.StatusPending}
	}

	// A call the open breaker rejected never reached the peer and does not
	// count towards maxAttempts.
	if res.ReachedPeer() {
		o.RecordAttempt()
	}
	status := res.Status

	switch status {
	case confirmation.StatusSuccess:
		if err := o.TransitionTo(order.StatusCompleted); err != nil {
			return err
		}
	case confirmation.StatusFailed:
		if err := o.TransitionTo(order.StatusFailed); err != nil {
			return err
		}
	default:
		if s.maxAttempts > 0 && o.PaymentAttempts >= s.maxAttempts {
			s.logger.Error().
				Str("order_id", o.ID.String()).
				Int("attempts", o.PaymentAttempts).
				Msg("giving up on payment confirmation")
			if err := o.TransitionTo(order.StatusFailed); err != nil {
				return err
			}
		}
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.orderRepo.Update(txCtx, o); err != nil {
			return err
		}
		if o.Status != order.StatusPending {
			return nil
		}
		return s.outboxRepo.Insert(txCtx, outbox.NewOrderEvent(o.ID, outbox.EventOrderPaymentPending, map[string]any{
			"order_id": o.ID.String(),
			"amount":   o.TotalAmount,
			"attempts": o.PaymentAttempts,
		}))
	})
	if err != nil {
		return fmt.Errorf("persist order %s: %w", o.ID, err)
	}

	s.metrics.OrdersTotal.WithLabelValues(string(o.Status)).Inc()
	s.logger.Info().
		Str("order_id", o.ID.String()).
		Str("status", string(o.Status)).
		Int("attempts", o.PaymentAttempts).
		Msg("order payment settled")
	return nil
}
