package payment

import (
	"time"

	"github.com/cassiomorais/storepay/internal/domain/errors"
)

// Status is the lifecycle state of a recorded payment.
type Status string

const (
	StatusSuccess   Status = "SUCCESS"
	StatusFail      Status = "FAIL"
	StatusCancelled Status = "CANCELLED"
)

// Payload defaults applied when the caller leaves a field blank.
const (
	DefaultMethod    = "card"
	DefaultOrderName = "Online store order"
	DefaultBuyerName = "Customer"
)

// Record is one confirmed or cancelled payment in the ledger.
type Record struct {
	ID          int64
	OrderID     string
	ReceiptID   string
	PayerEmail  string
	Amount      int64
	Status      Status
	Method      string
	OrderName   string
	BuyerName   string
	RawResponse []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Details is the normalized payment payload returned to callers and cached
// alongside a verification result.
type Details struct {
	ReceiptID  string `json:"receipt_id" msgpack:"receipt_id"`
	OrderID    string `json:"order_id" msgpack:"order_id"`
	Price      int64  `json:"price" msgpack:"price"`
	Method     string `json:"method" msgpack:"method"`
	OrderName  string `json:"order_name" msgpack:"order_name"`
	BuyerName  string `json:"buyer_name" msgpack:"buyer_name"`
	PayerEmail string `json:"payer_email" msgpack:"payer_email"`
	Status     Status `json:"status" msgpack:"status"`
}

// NewRecord builds a SUCCESS ledger record from normalized details. The raw
// response is stored verbatim and never interpreted by the ledger.
func NewRecord(d Details, raw []byte) (*Record, error) {
	if d.ReceiptID == "" {
		return nil, errors.NewValidationError("receipt_id", "cannot be empty")
	}
	if d.Price < 0 {
		return nil, errors.NewValidationError("price", "must not be negative")
	}

	now := time.Now()
	return &Record{
		OrderID:     d.OrderID,
		ReceiptID:   d.ReceiptID,
		PayerEmail:  d.PayerEmail,
		Amount:      d.Price,
		Status:      StatusSuccess,
		Method:      d.Method,
		OrderName:   d.OrderName,
		BuyerName:   d.BuyerName,
		RawResponse: raw,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Details rebuilds the caller-facing payload from the stored columns.
func (r *Record) Details() Details {
	return Details{
		ReceiptID:  r.ReceiptID,
		OrderID:    r.OrderID,
		Price:      r.Amount,
		Method:     r.Method,
		OrderName:  r.OrderName,
		BuyerName:  r.BuyerName,
		PayerEmail: r.PayerEmail,
		Status:     r.Status,
	}
}

// CanTransitionTo checks if the record can move to the given status.
// SUCCESS -> CANCELLED is the only legal transition.
func (r *Record) CanTransitionTo(newStatus Status) bool {
	transitions := map[Status][]Status{
		StatusSuccess:   {StatusCancelled},
		StatusFail:      {},
		StatusCancelled: {},
	}

	for _, allowed := range transitions[r.Status] {
		if allowed == newStatus {
			return true
		}
	}
	return false
}

// TransitionTo moves the record to a new status.
func (r *Record) TransitionTo(newStatus Status) error {
	if !r.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(r.Status)+" to "+string(newStatus),
			errors.ErrInvalidStateTransition,
		)
	}

	r.Status = newStatus
	r.UpdatedAt = time.Now()
	return nil
}

// MarkCancelled cancels the record and overwrites the stored gateway response.
func (r *Record) MarkCancelled(raw []byte) error {
	if err := r.TransitionTo(StatusCancelled); err != nil {
		return err
	}
	r.RawResponse = raw
	return nil
}
