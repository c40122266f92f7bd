package handlers

import (
	"context"
	"net/http"

	"github.com/cassiomorais/storepay/internal/fault"
	"github.com/cassiomorais/storepay/internal/infrastructure/confirmation"
	"github.com/cassiomorais/storepay/internal/interfaces/http/dto"
	"github.com/rs/zerolog"
)

// FaultChecker fails marked requests while fault mode is on.
type FaultChecker interface {
	Check(ctx context.Context, t fault.Targets) error
}

// ProcessHandler is the payment processing peer the order flow confirms
// against. It honours fault mode so callers can watch their breaker trip.
type ProcessHandler struct {
	faults FaultChecker
	logger zerolog.Logger
}

func NewProcessHandler(faults FaultChecker, logger zerolog.Logger) *ProcessHandler {
	return &ProcessHandler{faults: faults, logger: logger.With().Str("component", "process-handler").Logger()}
}

// Process handles POST /api/payments/process. Malformed requests are
// declined with FAILED rather than a generic error body.
func (h *ProcessHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req dto.ProcessPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.logger.Debug().Err(err).Msg("declining malformed process request")
		writeJSON(w, http.StatusBadRequest, dto.ProcessPaymentResponse{Status: string(confirmation.StatusFailed)})
		return
	}

	if err := h.faults.Check(r.Context(), fault.Targets{OrderID: req.OrderID, OrderName: req.OrderName}); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info().Str("order_id", req.OrderID).Int64("amount", req.Amount).Msg("payment processed")
	writeJSON(w, http.StatusOK, dto.ProcessPaymentResponse{Status: string(confirmation.StatusSuccess)})
}
