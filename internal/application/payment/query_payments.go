package payment

import (
	"context"
	"strings"

	domainErrors "github.com/cassiomorais/storepay/internal/domain/errors"
	"github.com/cassiomorais/storepay/internal/domain/payment"
)

// ListPaymentHistoryUseCase lists a payer's ledger records.
type ListPaymentHistoryUseCase struct {
	paymentRepo payment.Repository
}

func NewListPaymentHistoryUseCase(paymentRepo payment.Repository) *ListPaymentHistoryUseCase {
	return &ListPaymentHistoryUseCase{paymentRepo: paymentRepo}
}

// Execute returns the payer's payments, newest first.
func (uc *ListPaymentHistoryUseCase) Execute(ctx context.Context, payerEmail string) ([]*payment.Record, error) {
	payerEmail = strings.TrimSpace(payerEmail)
	if payerEmail == "" {
		return nil, domainErrors.NewValidationError("payer_email", "is required")
	}
	return uc.paymentRepo.ListByPayer(ctx, payerEmail)
}

// GetPaymentByOrderUseCase returns the latest payment of an order.
type GetPaymentByOrderUseCase struct {
	paymentRepo payment.Repository
}

func NewGetPaymentByOrderUseCase(paymentRepo payment.Repository) *GetPaymentByOrderUseCase {
	return &GetPaymentByOrderUseCase{paymentRepo: paymentRepo}
}

func (uc *GetPaymentByOrderUseCase) Execute(ctx context.Context, orderID string) (*payment.Record, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, domainErrors.NewValidationError("order_id", "is required")
	}
	return uc.paymentRepo.GetByOrderID(ctx, orderID)
}
