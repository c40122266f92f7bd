package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	domainErrors "github.com/cassiomorais/storepay/internal/domain/errors"
	"github.com/cassiomorais/storepay/internal/domain/outbox"
	"github.com/cassiomorais/storepay/internal/domain/payment"
	"github.com/cassiomorais/storepay/internal/fault"
	"github.com/cassiomorais/storepay/internal/infrastructure/gateway"
	"github.com/cassiomorais/storepay/internal/infrastructure/observability"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultCancelReason is sent to the gateway when the caller gives none.
const DefaultCancelReason = "customer request"

// CancelRequest holds the input for cancelling a verified payment. The
// order and buyer fields only feed fault targeting.
type CancelRequest struct {
	ReceiptID string
	Reason    string
	OrderID   string
	OrderName string
	BuyerName string
}

// CancelResult holds the cancelled record and the gateway's answer.
type CancelResult struct {
	Details         payment.Details
	GatewayResponse json.RawMessage
}

// CancelPaymentUseCase cancels a SUCCESS payment at the gateway and in the ledger.
type CancelPaymentUseCase struct {
	paymentRepo payment.Repository
	outboxRepo  OutboxWriter
	txManager   TransactionManager
	gateway     GatewayCanceller
	faults      FaultChecker
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

// NewCancelPaymentUseCase creates a new CancelPaymentUseCase.
func NewCancelPaymentUseCase(
	paymentRepo payment.Repository,
	outboxRepo OutboxWriter,
	txManager TransactionManager,
	gateway GatewayCanceller,
	faults FaultChecker,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *CancelPaymentUseCase {
	return &CancelPaymentUseCase{
		paymentRepo: paymentRepo,
		outboxRepo:  outboxRepo,
		txManager:   txManager,
		gateway:     gateway,
		faults:      faults,
		logger:      observability.Component(logger, "cancel-payment"),
		metrics:     metrics,
	}
}

// Execute cancels the payment. Only SUCCESS records can be cancelled; any
// other status fails with ErrInvalidStateTransition before the gateway is
// contacted.
func (uc *CancelPaymentUseCase) Execute(ctx context.Context, req CancelRequest) (result *CancelResult, err error) {
	ctx, span := observability.Tracer("payment").Start(ctx, "CancelPayment")
	defer func() {
		label := "cancelled"
		if err != nil {
			label = cancelErrorLabel(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		uc.metrics.CancellationsTotal.WithLabelValues(label).Inc()
		span.End()
	}()

	receiptID := strings.TrimSpace(req.ReceiptID)
	if receiptID == "" {
		return nil, domainErrors.NewValidationError("receipt_id", "is required")
	}
	span.SetAttributes(attribute.String("payment.receipt_id", receiptID))

	if err := uc.faults.Check(ctx, fault.Targets{OrderID: req.OrderID, OrderName: req.OrderName, BuyerName: req.BuyerName}); err != nil {
		return nil, err
	}

	record, err := uc.paymentRepo.GetByReceiptID(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	if !record.CanTransitionTo(payment.StatusCancelled) {
		return nil, domainErrors.NewDomainError(
			"invalid_transition",
			fmt.Sprintf("payment %s is %s and cannot be cancelled", receiptID, record.Status),
			domainErrors.ErrInvalidStateTransition,
		)
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = DefaultCancelReason
	}

	raw, err := uc.gateway.Cancel(ctx, gateway.CancelRequest{ReceiptID: receiptID, Reason: reason})
	if err != nil {
		uc.logger.Error().Err(err).Str("receipt_id", receiptID).Msg("gateway cancellation failed")
		return nil, err
	}
	raw = asJSON(raw)

	if err := record.MarkCancelled(raw); err != nil {
		return nil, err
	}

	err = uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.paymentRepo.Update(txCtx, record); err != nil {
			return err
		}
		return uc.outboxRepo.Insert(txCtx, outbox.NewPaymentEvent(record.ReceiptID, outbox.EventPaymentCancelled, map[string]any{
			"receipt_id": record.ReceiptID,
			"order_id":   record.OrderID,
			"amount":     record.Amount,
			"reason":     reason,
		}))
	})
	if err != nil {
		return nil, fmt.Errorf("record cancellation of %s: %w", receiptID, err)
	}

	uc.logger.Info().
		Str("receipt_id", receiptID).
		Str("order_id", record.OrderID).
		Str("reason", reason).
		Msg("payment cancelled")

	return &CancelResult{Details: record.Details(), GatewayResponse: raw}, nil
}

// asJSON keeps gateway answers storable in a jsonb column.
func asJSON(raw []byte) []byte {
	if json.Valid(raw) {
		return raw
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}

func cancelErrorLabel(err error) string {
	switch {
	case errors.Is(err, domainErrors.ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, domainErrors.ErrPaymentNotFound):
		return "not_found"
	case errors.Is(err, domainErrors.ErrInvalidStateTransition):
		return "invalid_state"
	case errors.Is(err, domainErrors.ErrGatewayAuth):
		return "gateway_auth"
	case errors.Is(err, domainErrors.ErrGatewayRejected):
		return "gateway_rejected"
	case domainErrors.FaultKind(err) != "":
		return domainErrors.FaultKind(err)
	default:
		return "error"
	}
}
