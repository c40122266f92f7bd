package worker

import (
	"context"
	"time"

	"github.com/cassiomorais/storepay/internal/domain/order"
	"github.com/cassiomorais/storepay/internal/domain/outbox"
	"github.com/cassiomorais/storepay/internal/infrastructure/observability"
	storeredis "github.com/cassiomorais/storepay/internal/infrastructure/redis"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventSource interface {
	Read(ctx context.Context) ([]*storeredis.Event, error)
	ClaimStale(ctx context.Context, minIdle time.Duration) ([]*storeredis.Event, error)
	Ack(ctx context.Context, messageID string) error
}

type OrderSettler interface {
	Execute(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
}

type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error)
}

// Reconciler consumes order.payment_pending events and retries the payment
// confirmation for each order. Only one worker settles a given order at a
// time; events it cannot lock stay pending and are reclaimed later.
type Reconciler struct {
	source   EventSource
	settler  OrderSettler
	locker   Locker
	stream   string
	lockTTL  time.Duration
	idleTime time.Duration
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

func NewReconciler(
	source EventSource,
	settler OrderSettler,
	locker Locker,
	stream string,
	lockTTL time.Duration,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Reconciler {
	return &Reconciler{
		source:   source,
		settler:  settler,
		locker:   locker,
		stream:   stream,
		lockTTL:  lockTTL,
		idleTime: 2 * lockTTL,
		logger:   observability.Component(logger, "order-reconciler"),
		metrics:  metrics,
	}
}

func reconcileLockKey(orderID string) string {
	return "order:reconcile:" + orderID
}

// Run reads until ctx is cancelled. Each round first reclaims messages
// another consumer left unacknowledged.
func (r *Reconciler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		stale, err := r.source.ClaimStale(ctx, r.idleTime)
		if err != nil {
			r.logger.Warn().Err(err).Msg("Failed to claim stale messages")
		}
		fresh, err := r.source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error().Err(err).Msg("Failed to read from stream")
			sleep(ctx, time.Second)
			continue
		}

		for _, ev := range append(stale, fresh...) {
			r.Handle(ctx, ev)
		}
	}
}

// Handle processes one event and acknowledges it unless it must be
// retried. It reports whether the event was acknowledged.
func (r *Reconciler) Handle(ctx context.Context, ev *storeredis.Event) bool {
	start := time.Now()
	defer func() {
		r.metrics.WorkerProcessingDuration.WithLabelValues(r.stream).Observe(time.Since(start).Seconds())
	}()

	logger := r.logger.With().Str("message_id", ev.MessageID).Str("event_type", ev.EventType).Logger()

	if ev.EventType != outbox.EventOrderPaymentPending {
		r.ack(ctx, ev, "skipped")
		return true
	}

	orderID, err := uuid.Parse(ev.AggregateID)
	if err != nil {
		logger.Error().Str("aggregate_id", ev.AggregateID).Msg("Invalid order id in event")
		r.ack(ctx, ev, "invalid")
		return true
	}

	acquired, err := r.locker.WithLock(ctx, reconcileLockKey(ev.AggregateID), r.lockTTL, func(lockCtx context.Context) error {
		o, err := r.settler.Execute(lockCtx, orderID)
		if err != nil {
			return err
		}
		logger.Info().
			Str("order_id", o.ID.String()).
			Str("status", string(o.Status)).
			Int("attempts", o.PaymentAttempts).
			Msg("Order reconciled")
		return nil
	})
	switch {
	case err != nil:
		logger.Error().Err(err).Str("order_id", ev.AggregateID).Msg("Failed to reconcile order")
		r.metrics.WorkerMessagesProcessed.WithLabelValues(r.stream, "error").Inc()
		return false
	case !acquired:
		logger.Debug().Str("order_id", ev.AggregateID).Msg("Order is being reconciled elsewhere, skipping")
		r.metrics.WorkerMessagesProcessed.WithLabelValues(r.stream, "busy").Inc()
		return false
	}

	r.ack(ctx, ev, "success")
	return true
}

func (r *Reconciler) ack(ctx context.Context, ev *storeredis.Event, status string) {
	if err := r.source.Ack(ctx, ev.MessageID); err != nil {
		r.logger.Error().Err(err).Str("message_id", ev.MessageID).Msg("Failed to ack message")
	}
	r.metrics.WorkerMessagesProcessed.WithLabelValues(r.stream, status).Inc()
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
