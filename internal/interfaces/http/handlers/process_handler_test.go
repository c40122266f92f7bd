package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	domainErrors "github.com/cassiomorais/storepay/internal/domain/errors"
	"github.com/cassiomorais/storepay/internal/fault"
	"github.com/cassiomorais/storepay/internal/interfaces/http/dto"
	"github.com/cassiomorais/storepay/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessHandler_Process(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		faultErr   error
		wantCode   int
		wantStatus string
	}{
		{"processed", `{"order_id":"o-1","order_name":"Desk","amount":1500}`, nil, http.StatusOK, "SUCCESS"},
		{"missing order id", `{"amount":1500}`, nil, http.StatusBadRequest, "FAILED"},
		{"malformed body", `{"order_id":`, nil, http.StatusBadRequest, "FAILED"},
		{"fault injected", `{"order_id":"FAILURE-1","amount":1}`, domainErrors.ErrSimulatedFailure, http.StatusInternalServerError, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			faults := &testutil.MockFaultChecker{
				CheckFunc: func(ctx context.Context, _ fault.Targets) error { return tt.faultErr },
			}
			h := NewProcessHandler(faults, zerolog.Nop())

			w := httptest.NewRecorder()
			h.Process(w, httptest.NewRequest(http.MethodPost, "/api/payments/process", bytes.NewBufferString(tt.body)))

			assert.Equal(t, tt.wantCode, w.Code)
			var resp dto.ProcessPaymentResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
		})
	}
}
