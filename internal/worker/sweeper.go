package worker

import (
	"context"
	"time"

	"github.com/cassiomorais/storepay/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

type IdempotencyCleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// IdempotencySweeper deletes expired idempotency keys on an interval.
type IdempotencySweeper struct {
	cleaner  IdempotencyCleaner
	interval time.Duration
	logger   zerolog.Logger
}

func NewIdempotencySweeper(cleaner IdempotencyCleaner, interval time.Duration, logger zerolog.Logger) *IdempotencySweeper {
	return &IdempotencySweeper{
		cleaner:  cleaner,
		interval: interval,
		logger:   observability.Component(logger, "idempotency-sweeper"),
	}
}

func (s *IdempotencySweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		n, err := s.cleaner.Cleanup(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("Idempotency cleanup failed")
			continue
		}
		if n > 0 {
			s.logger.Info().Int64("deleted", n).Msg("Expired idempotency keys removed")
		}
	}
}
