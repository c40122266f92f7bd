package dto

import (
	"encoding/json"
	"time"

	"github.com/cassiomorais/storepay/internal/domain/order"
	"github.com/cassiomorais/storepay/internal/domain/payment"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Status    string `json:"status,omitempty"`
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// CancelResponse wraps a successful cancellation.
type CancelResponse struct {
	Status          string          `json:"status"`
	Message         string          `json:"message"`
	Data            payment.Details `json:"data"`
	GatewayResponse json.RawMessage `json:"gateway_response"`
}

// FaultStatusResponse reports the fault switch.
type FaultStatusResponse struct {
	Status      string `json:"status"`
	FailureMode bool   `json:"failureMode"`
	FailureType int    `json:"failureType"`
	Message     string `json:"message,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
}

// PaymentResponse is one ledger record.
type PaymentResponse struct {
	ID          int64           `json:"id"`
	OrderID     string          `json:"order_id"`
	ReceiptID   string          `json:"receipt_id"`
	PayerEmail  string          `json:"payer_email"`
	Amount      int64           `json:"amount"`
	Status      string          `json:"status"`
	Method      string          `json:"method"`
	OrderName   string          `json:"order_name"`
	BuyerName   string          `json:"buyer_name"`
	RawResponse json.RawMessage `json:"response_data,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// OrderResponse is one order.
type OrderResponse struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Name            string    `json:"name"`
	TotalAmount     int64     `json:"total_amount"`
	Status          string    `json:"status"`
	PaymentAttempts int       `json:"payment_attempts"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// VersionResponse describes the running build.
type VersionResponse struct {
	Service     string `json:"service"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// ProcessPaymentResponse is the processing peer's answer.
type ProcessPaymentResponse struct {
	Status string `json:"status"`
}

func PaymentResponseFromDomain(r *payment.Record) PaymentResponse {
	resp := PaymentResponse{
		ID:         r.ID,
		OrderID:    r.OrderID,
		ReceiptID:  r.ReceiptID,
		PayerEmail: r.PayerEmail,
		Amount:     r.Amount,
		Status:     string(r.Status),
		Method:     r.Method,
		OrderName:  r.OrderName,
		BuyerName:  r.BuyerName,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if json.Valid(r.RawResponse) {
		resp.RawResponse = r.RawResponse
	}
	return resp
}

func PaymentListFromDomain(records []*payment.Record) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(records))
	for _, r := range records {
		out = append(out, PaymentResponseFromDomain(r))
	}
	return out
}

func OrderResponseFromDomain(o *order.Order) OrderResponse {
	return OrderResponse{
		ID:              o.ID.String(),
		UserID:          o.UserID,
		Name:            o.Name,
		TotalAmount:     o.TotalAmount,
		Status:          string(o.Status),
		PaymentAttempts: o.PaymentAttempts,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}
