package payment

import (
	"context"
	"time"

	"github.com/cassiomorais/storepay/internal/domain/outbox"
	"github.com/cassiomorais/storepay/internal/domain/payment"
	"github.com/cassiomorais/storepay/internal/fault"
	"github.com/cassiomorais/storepay/internal/infrastructure/gateway"
)

// TransactionManager defines the interface for transaction management.
// This is an application-layer port, not a domain concern.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// OutboxWriter defines the interface for writing to the transactional outbox.
type OutboxWriter interface {
	Insert(ctx context.Context, entry *outbox.Entry) error
}

// VerificationCache holds verification envelopes by receipt id.
type VerificationCache interface {
	Get(ctx context.Context, receiptID string) (*payment.VerifyResult, bool, error)
	Put(ctx context.Context, receiptID string, result *payment.VerifyResult) error
}

// Locker runs fn under a short-lived distributed lock. acquired is false
// when another holder owns the key.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (acquired bool, err error)
}

// FaultChecker produces an injected fault for marked requests.
type FaultChecker interface {
	Check(ctx context.Context, t fault.Targets) error
}

// GatewayCanceller cancels a receipt at the external payment gateway and
// returns its raw answer.
type GatewayCanceller interface {
	Cancel(ctx context.Context, req gateway.CancelRequest) ([]byte, error)
}
