package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/storepay/internal/domain/errors"
	"github.com/cassiomorais/storepay/internal/domain/outbox"
	"github.com/cassiomorais/storepay/internal/domain/payment"
	"github.com/cassiomorais/storepay/internal/fault"
	"github.com/cassiomorais/storepay/internal/infrastructure/observability"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const lockKeyPrefix = "payment:lock:"

// VerifyRequest holds the caller's view of a completed gateway payment.
// Blank optional fields are filled with defaults.
type VerifyRequest struct {
	ReceiptID  string
	PayerEmail string
	Amount     int64
	OrderID    string
	Method     string
	OrderName  string
	BuyerName  string
}

func (r VerifyRequest) targets() fault.Targets {
	return fault.Targets{OrderID: r.OrderID, OrderName: r.OrderName, BuyerName: r.BuyerName}
}

// LockKey is the lock guarding verification of one payer/amount pair.
func LockKey(payerEmail string, amount int64) string {
	return fmt.Sprintf("%s%s:%d", lockKeyPrefix, payerEmail, amount)
}

// VerifyPaymentUseCase records a gateway payment exactly once per receipt.
type VerifyPaymentUseCase struct {
	paymentRepo payment.Repository
	outboxRepo  OutboxWriter
	txManager   TransactionManager
	cache       VerificationCache
	locker      Locker
	faults      FaultChecker
	lockTTL     time.Duration
	logger      zerolog.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

// NewVerifyPaymentUseCase creates a new VerifyPaymentUseCase. A fault delay
// that outlives the lock would let a second caller in while the first is
// still stalled, so that combination is refused.
func NewVerifyPaymentUseCase(
	paymentRepo payment.Repository,
	outboxRepo OutboxWriter,
	txManager TransactionManager,
	cache VerificationCache,
	locker Locker,
	faults FaultChecker,
	lockTTL time.Duration,
	faultDelay time.Duration,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) (*VerifyPaymentUseCase, error) {
	if lockTTL <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive, got %s", lockTTL)
	}
	if faultDelay >= lockTTL {
		return nil, fmt.Errorf("fault delay %s must be shorter than lock ttl %s", faultDelay, lockTTL)
	}

	return &VerifyPaymentUseCase{
		paymentRepo: paymentRepo,
		outboxRepo:  outboxRepo,
		txManager:   txManager,
		cache:       cache,
		locker:      locker,
		faults:      faults,
		lockTTL:     lockTTL,
		logger:      observability.Component(logger, "verify-payment"),
		metrics:     metrics,
		now:         time.Now,
	}, nil
}

// Execute verifies a payment. Busy and already-processed are results, not
// errors; errors are invalid input, injected faults and lock store outages.
func (uc *VerifyPaymentUseCase) Execute(ctx context.Context, req VerifyRequest) (result *payment.VerifyResult, err error) {
	start := time.Now()
	ctx, span := observability.Tracer("payment").Start(ctx, "VerifyPayment")
	defer func() {
		label := outcomeLabel(result, err)
		uc.metrics.VerificationsTotal.WithLabelValues(label).Inc()
		uc.metrics.VerificationDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
		span.SetAttributes(attribute.String("payment.outcome", label))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req.ReceiptID = strings.TrimSpace(req.ReceiptID)
	req.PayerEmail = strings.TrimSpace(req.PayerEmail)
	if req.ReceiptID == "" {
		return nil, domainErrors.NewValidationError("receipt_id", "is required")
	}
	if req.PayerEmail == "" {
		return nil, domainErrors.NewValidationError("payer_email", "is required")
	}
	if req.Amount < 0 {
		return nil, domainErrors.NewValidationError("price", "must not be negative")
	}
	span.SetAttributes(attribute.String("payment.receipt_id", req.ReceiptID))

	if err := uc.faults.Check(ctx, req.targets()); err != nil {
		return nil, err
	}

	if cached, ok := uc.cached(ctx, req.ReceiptID); ok {
		return cached, nil
	}

	acquired, err := uc.locker.WithLock(ctx, LockKey(req.PayerEmail, req.Amount), uc.lockTTL, func(ctx context.Context) error {
		var lockedErr error
		result, lockedErr = uc.verifyLocked(ctx, req)
		return lockedErr
	})
	if err != nil {
		return nil, err
	}
	if !acquired {
		uc.logger.Info().
			Str("receipt_id", req.ReceiptID).
			Int64("amount", req.Amount).
			Msg("verification already in progress for payer and amount")
		return payment.NewBusyResult(), nil
	}
	return result, nil
}

func (uc *VerifyPaymentUseCase) verifyLocked(ctx context.Context, req VerifyRequest) (*payment.VerifyResult, error) {
	existing, err := uc.paymentRepo.GetByReceiptID(ctx, req.ReceiptID)
	switch {
	case err == nil:
		result := payment.NewAlreadyProcessedResult(existing.Details())
		uc.store(ctx, req.ReceiptID, result)
		return result, nil
	case !errors.Is(err, domainErrors.ErrPaymentNotFound):
		return nil, fmt.Errorf("look up receipt %s: %w", req.ReceiptID, err)
	}

	if err := uc.faults.Check(ctx, req.targets()); err != nil {
		return nil, err
	}

	details := uc.normalize(req)
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("encode payment details: %w", err)
	}
	record, err := payment.NewRecord(details, raw)
	if err != nil {
		return nil, err
	}

	err = uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.paymentRepo.Create(txCtx, record); err != nil {
			return err
		}
		return uc.outboxRepo.Insert(txCtx, outbox.NewPaymentEvent(record.ReceiptID, outbox.EventPaymentVerified, map[string]any{
			"receipt_id":  record.ReceiptID,
			"order_id":    record.OrderID,
			"amount":      record.Amount,
			"payer_email": record.PayerEmail,
			"method":      record.Method,
		}))
	})
	if errors.Is(err, domainErrors.ErrDuplicateReceipt) {
		if winner, lookupErr := uc.paymentRepo.GetByReceiptID(ctx, req.ReceiptID); lookupErr == nil {
			result := payment.NewAlreadyProcessedResult(winner.Details())
			uc.store(ctx, req.ReceiptID, result)
			return result, nil
		}
	}
	if err != nil {
		// Reported, not returned: the payment itself was verified.
		uc.metrics.PersistenceWarnings.Inc()
		uc.logger.Warn().Err(err).
			Str("receipt_id", req.ReceiptID).
			Str("order_id", details.OrderID).
			Msg("verified payment could not be persisted")
	}

	result := payment.NewSuccessResult(details)
	uc.store(ctx, req.ReceiptID, result)

	uc.logger.Info().
		Str("receipt_id", details.ReceiptID).
		Str("order_id", details.OrderID).
		Int64("amount", details.Price).
		Msg("payment verified")
	return result, nil
}

func (uc *VerifyPaymentUseCase) normalize(req VerifyRequest) payment.Details {
	return payment.Details{
		ReceiptID:  req.ReceiptID,
		OrderID:    orDefault(req.OrderID, fmt.Sprintf("ORDER_%d", uc.now().UnixMilli())),
		Price:      req.Amount,
		Method:     orDefault(req.Method, payment.DefaultMethod),
		OrderName:  orDefault(req.OrderName, payment.DefaultOrderName),
		BuyerName:  orDefault(req.BuyerName, payment.DefaultBuyerName),
		PayerEmail: req.PayerEmail,
		Status:     payment.StatusSuccess,
	}
}

func (uc *VerifyPaymentUseCase) cached(ctx context.Context, receiptID string) (*payment.VerifyResult, bool) {
	cached, ok, err := uc.cache.Get(ctx, receiptID)
	if err != nil {
		uc.logger.Warn().Err(err).Str("receipt_id", receiptID).Msg("verification cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	cached.Outcome = payment.OutcomeAlreadyProcessed
	cached.Replayed = true
	return cached, true
}

func (uc *VerifyPaymentUseCase) store(ctx context.Context, receiptID string, result *payment.VerifyResult) {
	if err := uc.cache.Put(ctx, receiptID, result); err != nil {
		uc.logger.Warn().Err(err).Str("receipt_id", receiptID).Msg("verification cache write failed")
	}
}

func outcomeLabel(result *payment.VerifyResult, err error) string {
	switch {
	case err == nil && result != nil:
		return string(result.Outcome)
	case errors.Is(err, domainErrors.ErrInvalidRequest):
		return "invalid"
	case domainErrors.FaultKind(err) != "":
		return domainErrors.FaultKind(err)
	case errors.Is(err, domainErrors.ErrLockUnavailable):
		return "lock_unavailable"
	default:
		return "error"
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
