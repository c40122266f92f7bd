package handlers

import (
	"net/http"
	"time"

	"github.com/cassiomorais/storepay/internal/fault"
	"github.com/cassiomorais/storepay/internal/interfaces/http/dto"
)

// FaultHandler exposes the fault injector to operators.
type FaultHandler struct {
	injector *fault.Injector
}

func NewFaultHandler(injector *fault.Injector) *FaultHandler {
	return &FaultHandler{injector: injector}
}

// Toggle handles POST /api/payment/failure/toggle. With "enable" the mode is
// set explicitly; without it the enabled flag flips. "type" changes the
// fault kind in both cases.
func (h *FaultHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req dto.FaultToggleRequest
	if _, err := decodeOptional(r, &req); err != nil {
		writeError(w, err)
		return
	}

	mode, err := h.injector.Update(func(cur fault.Mode) fault.Mode {
		next := fault.Mode{Enabled: !cur.Enabled, Kind: cur.Kind}
		if req.Enable != nil {
			next.Enabled = *req.Enable
		}
		if req.Type != nil {
			next.Kind = fault.Kind(*req.Type)
		}
		return next
	})
	if err != nil {
		writeError(w, err)
		return
	}

	msg := "fault mode disabled"
	if mode.Enabled {
		msg = "fault mode enabled"
	}
	writeJSON(w, http.StatusOK, dto.FaultStatusResponse{
		Status:      "success",
		FailureMode: mode.Enabled,
		FailureType: int(mode.Kind),
		Message:     msg,
	})
}

// Status handles GET /api/payment/failure/status.
func (h *FaultHandler) Status(w http.ResponseWriter, r *http.Request) {
	mode := h.injector.Mode()
	writeJSON(w, http.StatusOK, dto.FaultStatusResponse{
		Status:      "success",
		FailureMode: mode.Enabled,
		FailureType: int(mode.Kind),
		Timestamp:   time.Now().UnixMilli(),
	})
}
