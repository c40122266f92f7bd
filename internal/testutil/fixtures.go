package testutil

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/cassiomorais/storepay/internal/domain/order"
	"github.com/cassiomorais/storepay/internal/domain/payment"
	"github.com/google/uuid"
)

// NewTestDetails returns normalized payment details with random values.
func NewTestDetails() payment.Details {
	return payment.Details{
		ReceiptID:  "RCPT_" + strings.ToUpper(gofakeit.LetterN(12)),
		OrderID:    "ORDER_" + gofakeit.DigitN(13),
		Price:      int64(gofakeit.Number(1000, 500000)),
		Method:     payment.DefaultMethod,
		OrderName:  gofakeit.ProductName(),
		BuyerName:  gofakeit.Name(),
		PayerEmail: gofakeit.Email(),
		Status:     payment.StatusSuccess,
	}
}

// NewTestRecord returns a SUCCESS ledger record for the details.
func NewTestRecord(d payment.Details) *payment.Record {
	raw, _ := json.Marshal(d)
	now := time.Now()
	return &payment.Record{
		OrderID:     d.OrderID,
		ReceiptID:   d.ReceiptID,
		PayerEmail:  d.PayerEmail,
		Amount:      d.Price,
		Status:      payment.StatusSuccess,
		Method:      d.Method,
		OrderName:   d.OrderName,
		BuyerName:   d.BuyerName,
		RawResponse: raw,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewCancelledRecord returns a CANCELLED ledger record.
func NewCancelledRecord(d payment.Details) *payment.Record {
	r := NewTestRecord(d)
	r.Status = payment.StatusCancelled
	return r
}

// NewTestOrder returns a PENDING order with random values.
func NewTestOrder() *order.Order {
	now := time.Now()
	return &order.Order{
		ID:          uuid.New(),
		UserID:      gofakeit.Email(),
		Name:        gofakeit.ProductName(),
		TotalAmount: int64(gofakeit.Number(1000, 500000)),
		Status:      order.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
