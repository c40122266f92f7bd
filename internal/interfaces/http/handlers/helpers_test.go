package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domainErrors "github.com/cassiomorais/storepay/internal/domain/errors"
	"github.com/cassiomorais/storepay/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	writeJSON(w, http.StatusCreated, map[string]string{"message": "hello"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":"hello"}`, w.Body.String())
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantStatus    int
		wantCode      string
		wantErrorType string
	}{
		{"validation", domainErrors.NewValidationError("receipt_id", "is required"), http.StatusBadRequest, "validation_error", ""},
		{"payment not found", fmt.Errorf("lookup: %w", domainErrors.ErrPaymentNotFound), http.StatusNotFound, "not_found", ""},
		{"order not found", domainErrors.ErrOrderNotFound, http.StatusNotFound, "not_found", ""},
		{"state transition", domainErrors.NewDomainError("invalid_transition", "cannot cancel", domainErrors.ErrInvalidStateTransition), http.StatusConflict, "invalid_state_transition", ""},
		{"gateway rejected", domainErrors.ErrGatewayRejected, http.StatusBadGateway, "gateway_rejected", ""},
		{"gateway auth", domainErrors.ErrGatewayAuth, http.StatusBadGateway, "gateway_auth_failed", ""},
		{"token transport failure", fmt.Errorf("%w: %w", domainErrors.ErrGatewayAuth, domainErrors.ErrTransportFault), http.StatusBadGateway, "gateway_auth_failed", "transport_error"},
		{"simulated fault", domainErrors.ErrSimulatedFailure, http.StatusInternalServerError, "simulated_error", "simulated_error"},
		{"transport fault", domainErrors.ErrTransportFault, http.StatusInternalServerError, "transport_error", "transport_error"},
		{"lock store", fmt.Errorf("%w: dial tcp", domainErrors.ErrLockUnavailable), http.StatusServiceUnavailable, "lock_unavailable", ""},
		{"other domain error", domainErrors.NewDomainError("weird", "weird", nil), http.StatusUnprocessableEntity, "weird", ""},
		{"unknown", errors.New("database exploded"), http.StatusInternalServerError, "internal_error", "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			writeError(w, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp dto.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantErrorType, resp.ErrorType)
		})
	}
}

func TestWriteError_HidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()

	writeError(w, errors.New("password=hunter2"))

	assert.NotContains(t, w.Body.String(), "hunter2")
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"valid", `{"receipt_id":"R"}`, ""},
		{"missing required", `{}`, "ReceiptID"},
		{"invalid json", `{`, "body"},
		{"too long", `{"receipt_id":"` + strings.Repeat("x", 200) + `"}`, "ReceiptID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst dto.CancelPaymentRequest
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			err := decodeAndValidate(r, &dst)

			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			var ve *domainErrors.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestDecodeOptional_EmptyBody(t *testing.T) {
	var dst dto.FaultToggleRequest
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))

	present, err := decodeOptional(r, &dst)

	require.NoError(t, err)
	assert.False(t, present)
}
