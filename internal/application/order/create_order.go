package order

import (
	"context"

	"github.com/cassiomorais/storepay/internal/domain/order"
	"github.com/cassiomorais/storepay/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// CreateOrderRequest holds the input for creating an order.
type CreateOrderRequest struct {
	UserID      string
	Name        string
	TotalAmount int64
}

// CreateOrderUseCase persists an order and confirms its payment right away.
type CreateOrderUseCase struct {
	orderRepo order.Repository
	settler   *settler
}

// NewCreateOrderUseCase creates a new CreateOrderUseCase.
func NewCreateOrderUseCase(
	orderRepo order.Repository,
	outboxRepo OutboxWriter,
	txManager TransactionManager,
	confirmer Confirmer,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *CreateOrderUseCase {
	return &CreateOrderUseCase{
		orderRepo: orderRepo,
		settler: &settler{
			orderRepo:  orderRepo,
			outboxRepo: outboxRepo,
			txManager:  txManager,
			confirmer:  confirmer,
			logger:     observability.Component(logger, "create-order"),
			metrics:    metrics,
		},
	}
}

// Execute creates the order. The returned order is COMPLETED, FAILED, or
// PENDING when the processing peer was unavailable.
func (uc *CreateOrderUseCase) Execute(ctx context.Context, req CreateOrderRequest) (*order.Order, error) {
	o, err := order.NewOrder(req.UserID, req.Name, req.TotalAmount)
	if err != nil {
		return nil, err
	}
	if err := uc.orderRepo.Create(ctx, o); err != nil {
		return nil, err
	}
	if err := uc.settler.settle(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}
