package handlers

import (
	"context"
	"net/http"

	paymentApp "github.com/cassiomorais/storepay/internal/application/payment"
	"github.com/cassiomorais/storepay/internal/domain/payment"
	"github.com/cassiomorais/storepay/internal/interfaces/http/dto"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// PayerHeader carries the authenticated payer's email, set by the gateway
// in front of this service.
const PayerHeader = "User-Email"

// ReplayedHeader marks a verification answered from the cache.
const ReplayedHeader = "X-Verification-Replayed"

// PaymentHandler handles payment verification and ledger HTTP requests.
type PaymentHandler struct {
	verifyUC  *paymentApp.VerifyPaymentUseCase
	cancelUC  *paymentApp.CancelPaymentUseCase
	historyUC *paymentApp.ListPaymentHistoryUseCase
	byOrderUC *paymentApp.GetPaymentByOrderUseCase
	version   string
	logger    zerolog.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(
	verifyUC *paymentApp.VerifyPaymentUseCase,
	cancelUC *paymentApp.CancelPaymentUseCase,
	historyUC *paymentApp.ListPaymentHistoryUseCase,
	byOrderUC *paymentApp.GetPaymentByOrderUseCase,
	version string,
	logger zerolog.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		verifyUC:  verifyUC,
		cancelUC:  cancelUC,
		historyUC: historyUC,
		byOrderUC: byOrderUC,
		version:   version,
		logger:    logger.With().Str("component", "payment-handler").Logger(),
	}
}

// Verify handles POST /api/payment/verify. The verification runs to
// completion even if the client disconnects.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	amount, err := payment.ParseAmount(req.RawAmount())
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.verifyUC.Execute(context.WithoutCancel(r.Context()), paymentApp.VerifyRequest{
		ReceiptID:  req.Receipt(),
		PayerEmail: r.Header.Get(PayerHeader),
		Amount:     amount,
		OrderID:    req.OrderID,
		Method:     req.Method,
		OrderName:  req.OrderName,
		BuyerName:  req.BuyerName,
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("receipt_id", req.Receipt()).Msg("payment verification failed")
		writeError(w, err)
		return
	}

	if result.Outcome == payment.OutcomeBusy {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{
			Status: result.Status,
			Error:  result.Message,
			Code:   "payment_in_progress",
		})
		return
	}
	if result.Replayed {
		w.Header().Set(ReplayedHeader, "true")
	}
	writeJSON(w, http.StatusOK, result)
}

// Cancel handles POST /api/payment/cancel.
func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req dto.CancelPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.cancelUC.Execute(r.Context(), paymentApp.CancelRequest{
		ReceiptID: req.ReceiptID,
		Reason:    req.Reason,
		OrderID:   req.OrderID,
		OrderName: req.OrderName,
		BuyerName: req.BuyerName,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CancelResponse{
		Status:          payment.EnvelopeSuccess,
		Message:         "payment cancelled",
		Data:            result.Details,
		GatewayResponse: result.GatewayResponse,
	})
}

// History handles GET /api/payment/history.
func (h *PaymentHandler) History(w http.ResponseWriter, r *http.Request) {
	records, err := h.historyUC.Execute(r.Context(), r.Header.Get(PayerHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.PaymentListFromDomain(records))
}

// ByOrder handles GET /api/payment/order/{orderId}.
func (h *PaymentHandler) ByOrder(w http.ResponseWriter, r *http.Request) {
	record, err := h.byOrderUC.Execute(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.PaymentResponseFromDomain(record))
}

// Version handles GET /api/payment/version.
func (h *PaymentHandler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.VersionResponse{
		Service:     "payment-service",
		Version:     h.version,
		Description: "payment verification with gateway cancellation and fault injection",
	})
}
