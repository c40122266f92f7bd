package dto

import (
	"encoding/json"
	"strings"
)

// VerifyPaymentRequest is the body of POST /api/payment/verify. Clients send
// the receipt under one of three names and the amount as price or amount.
type VerifyPaymentRequest struct {
	ReceiptID      string      `json:"receipt_id" validate:"omitempty,max=128"`
	ReceiptIDCamel string      `json:"receiptId" validate:"omitempty,max=128"`
	PaymentKey     string      `json:"payment_key" validate:"omitempty,max=128"`
	OrderID        string      `json:"order_id" validate:"omitempty,max=128"`
	Price          json.Number `json:"price"`
	Amount         json.Number `json:"amount"`
	Method         string      `json:"method" validate:"omitempty,max=64"`
	OrderName      string      `json:"order_name" validate:"omitempty,max=255"`
	BuyerName      string      `json:"buyer_name" validate:"omitempty,max=255"`
}

// Receipt picks the first non-blank receipt alias.
func (r *VerifyPaymentRequest) Receipt() string {
	for _, v := range []string{r.ReceiptID, r.ReceiptIDCamel, r.PaymentKey} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// RawAmount returns price, falling back to amount. nil means neither was sent.
func (r *VerifyPaymentRequest) RawAmount() any {
	if r.Price != "" {
		return r.Price
	}
	if r.Amount != "" {
		return r.Amount
	}
	return nil
}

// CancelPaymentRequest is the body of POST /api/payment/cancel.
type CancelPaymentRequest struct {
	ReceiptID string `json:"receipt_id" validate:"required,max=128"`
	Reason    string `json:"reason" validate:"omitempty,max=255"`
	OrderID   string `json:"order_id" validate:"omitempty,max=128"`
	OrderName string `json:"order_name" validate:"omitempty,max=255"`
	BuyerName string `json:"buyer_name" validate:"omitempty,max=255"`
}

// FaultToggleRequest sets the fault mode. Both fields are optional; an
// empty body flips the enabled flag.
type FaultToggleRequest struct {
	Enable *bool `json:"enable"`
	Type   *int  `json:"type" validate:"omitempty,min=1,max=3"`
}

// ProcessPaymentRequest is what the order flow sends to the processing peer.
type ProcessPaymentRequest struct {
	OrderID   string `json:"order_id" validate:"required"`
	OrderName string `json:"order_name"`
	Amount    int64  `json:"amount" validate:"gte=0"`
}

// CreateOrderRequest is the body of POST /api/orders.
type CreateOrderRequest struct {
	UserID      string `json:"user_id" validate:"required,max=255"`
	Name        string `json:"name" validate:"required,max=255"`
	TotalAmount int64  `json:"total_amount" validate:"gte=0"`
}
