package order

import (
	"context"

	"github.com/cassiomorais/storepay/internal/domain/order"
	"github.com/cassiomorais/storepay/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReconcileOrderUseCase retries payment confirmation of a PENDING order.
// After maxAttempts confirmation attempts without an answer the order is
// marked FAILED.
type ReconcileOrderUseCase struct {
	orderRepo order.Repository
	settler   *settler
	logger    zerolog.Logger
}

// NewReconcileOrderUseCase creates a new ReconcileOrderUseCase.
func NewReconcileOrderUseCase(
	orderRepo order.Repository,
	outboxRepo OutboxWriter,
	txManager TransactionManager,
	confirmer Confirmer,
	maxAttempts int,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *ReconcileOrderUseCase {
	logger = observability.Component(logger, "reconcile-order")
	return &ReconcileOrderUseCase{
		orderRepo: orderRepo,
		settler: &settler{
			orderRepo:   orderRepo,
			outboxRepo:  outboxRepo,
			txManager:   txManager,
			confirmer:   confirmer,
			maxAttempts: maxAttempts,
			logger:      logger,
			metrics:     metrics,
		},
		logger: logger,
	}
}

// Execute is a no-op for orders that already left PENDING, so redelivered
// events are harmless.
func (uc *ReconcileOrderUseCase) Execute(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	o, err := uc.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.IsTerminal() {
		uc.logger.Debug().Str("order_id", orderID.String()).Str("status", string(o.Status)).Msg("order already settled")
		return o, nil
	}
	if err := uc.settler.settle(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}
