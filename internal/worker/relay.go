package worker

import (
	"context"
	"time"

	"github.com/cassiomorais/storepay/internal/domain/outbox"
	"github.com/cassiomorais/storepay/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OutboxStore is the outbox table as the relay sees it.
type OutboxStore interface {
	GetPending(ctx context.Context, limit int) ([]*outbox.Entry, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID) (dead bool, err error)
}

type Publisher interface {
	Publish(ctx context.Context, entry *outbox.Entry) (string, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// OutboxRelay moves pending outbox entries onto the event stream. Pending
// rows are locked for the duration of a batch, so several relays can run
// side by side.
type OutboxRelay struct {
	store     OutboxStore
	txManager TransactionManager
	publisher Publisher
	batchSize int
	interval  time.Duration
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

func NewOutboxRelay(
	store OutboxStore,
	txManager TransactionManager,
	publisher Publisher,
	batchSize int,
	interval time.Duration,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &OutboxRelay{
		store:     store,
		txManager: txManager,
		publisher: publisher,
		batchSize: batchSize,
		interval:  interval,
		logger:    observability.Component(logger, "outbox-relay"),
		metrics:   metrics,
	}
}

// Run polls until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if _, err := r.RelayOnce(ctx); err != nil {
			r.logger.Error().Err(err).Msg("Outbox relay error")
		}
	}
}

// RelayOnce publishes one batch and returns how many entries made it onto
// the stream. A failed publish is counted against the entry and the batch
// carries on.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	published := 0
	err := r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		entries, err := r.store.GetPending(txCtx, r.batchSize)
		if err != nil {
			return err
		}

		for _, entry := range entries {
			msgID, err := r.publisher.Publish(ctx, entry)
			if err != nil {
				r.logger.Error().Err(err).Str("outbox_id", entry.ID.String()).Msg("Failed to publish outbox event")
				r.metrics.OutboxPublished.WithLabelValues("failed").Inc()
				dead, markErr := r.store.MarkFailed(txCtx, entry.ID)
				if markErr != nil {
					return markErr
				}
				if dead {
					r.logger.Error().
						Str("outbox_id", entry.ID.String()).
						Str("event_type", entry.EventType).
						Str("aggregate_id", entry.AggregateID).
						Msg("Outbox event dead-lettered")
					r.metrics.OutboxPublished.WithLabelValues("dead").Inc()
				}
				continue
			}
			if err := r.store.MarkPublished(txCtx, entry.ID); err != nil {
				return err
			}
			r.metrics.OutboxPublished.WithLabelValues("published").Inc()
			r.logger.Debug().
				Str("outbox_id", entry.ID.String()).
				Str("event_type", entry.EventType).
				Str("message_id", msgID).
				Msg("Outbox event published")
			published++
		}
		return nil
	})
	return published, err
}
