package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Event types written by the payment and order flows.
const (
	EventPaymentVerified     = "payment.verified"
	EventPaymentCancelled    = "payment.cancelled"
	EventOrderPaymentPending = "order.payment_pending"
)

// Aggregates an event can belong to. Payment events are keyed by receipt
// id, order events by order id.
const (
	AggregatePayment = "payment"
	AggregateOrder   = "order"
)

// DefaultMaxRetries is how many failed publishes an entry survives before
// it is dead-lettered.
const DefaultMaxRetries = 5

type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	// StatusFailed entries are kept for inspection and never relayed again.
	StatusFailed Status = "failed"
)

// Entry is an event written in the same transaction as the state change it
// describes, waiting to be relayed to the event stream.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       map[string]any
	Status        Status
	RetryCount    int
	MaxRetries    int
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

func NewEntry(aggregateType, aggregateID, eventType string, payload map[string]any) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		Status:        StatusPending,
		MaxRetries:    DefaultMaxRetries,
		CreatedAt:     time.Now(),
	}
}

// NewPaymentEvent records an event about the payment with the given receipt.
func NewPaymentEvent(receiptID, eventType string, payload map[string]any) *Entry {
	return NewEntry(AggregatePayment, receiptID, eventType, payload)
}

// NewOrderEvent records an event about an order.
func NewOrderEvent(orderID uuid.UUID, eventType string, payload map[string]any) *Entry {
	return NewEntry(AggregateOrder, orderID.String(), eventType, payload)
}

// RecordFailure counts a failed publish and dead-letters the entry once
// its retries are spent. It reports whether the entry is now dead.
func (e *Entry) RecordFailure() bool {
	e.RetryCount++
	if e.RetryCount >= e.MaxRetries {
		e.Status = StatusFailed
	}
	return e.Status == StatusFailed
}

func (e *Entry) MarkPublished(at time.Time) {
	e.Status = StatusPublished
	e.PublishedAt = &at
}
