package order

import (
	"context"

	"github.com/cassiomorais/storepay/internal/domain/order"
	"github.com/google/uuid"
)

// GetOrderUseCase retrieves an order by ID.
type GetOrderUseCase struct {
	orderRepo order.Repository
}

func NewGetOrderUseCase(orderRepo order.Repository) *GetOrderUseCase {
	return &GetOrderUseCase{orderRepo: orderRepo}
}

func (uc *GetOrderUseCase) Execute(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return uc.orderRepo.GetByID(ctx, id)
}
