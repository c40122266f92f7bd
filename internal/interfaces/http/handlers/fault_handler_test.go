package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cassiomorais/storepay/internal/fault"
	"github.com/cassiomorais/storepay/internal/infrastructure/observability"
	"github.com/cassiomorais/storepay/internal/interfaces/http/dto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInjector(m fault.Mode) *fault.Injector {
	return fault.New(m, 10*time.Millisecond, zerolog.Nop(), observability.NewTestMetrics())
}

func toggle(t *testing.T, h *FaultHandler, body string) (*httptest.ResponseRecorder, dto.FaultStatusResponse) {
	t.Helper()
	var reader *bytes.Buffer
	if body == "" {
		reader = &bytes.Buffer{}
	} else {
		reader = bytes.NewBufferString(body)
	}
	w := httptest.NewRecorder()
	h.Toggle(w, httptest.NewRequest(http.MethodPost, "/api/payment/failure/toggle", reader))

	var resp dto.FaultStatusResponse
	if w.Code == http.StatusOK {
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	}
	return w, resp
}

func TestFaultHandler_Toggle(t *testing.T) {
	tests := []struct {
		name     string
		initial  fault.Mode
		body     string
		wantMode fault.Mode
	}{
		{"empty body flips on", fault.Mode{Kind: fault.KindError}, "", fault.Mode{Enabled: true, Kind: fault.KindError}},
		{"empty object flips off", fault.Mode{Enabled: true, Kind: fault.KindError}, `{}`, fault.Mode{Kind: fault.KindError}},
		{"explicit enable with type", fault.Mode{Kind: fault.KindTimeout}, `{"enable":true,"type":3}`, fault.Mode{Enabled: true, Kind: fault.KindTransport}},
		{"explicit disable keeps type", fault.Mode{Enabled: true, Kind: fault.KindError}, `{"enable":false}`, fault.Mode{Kind: fault.KindError}},
		{"explicit enable is idempotent", fault.Mode{Enabled: true, Kind: fault.KindError}, `{"enable":true}`, fault.Mode{Enabled: true, Kind: fault.KindError}},
		{"type only flips and sets kind", fault.Mode{Kind: fault.KindTimeout}, `{"type":2}`, fault.Mode{Enabled: true, Kind: fault.KindError}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inj := newInjector(tt.initial)
			h := NewFaultHandler(inj)

			w, resp := toggle(t, h, tt.body)

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantMode, inj.Mode())
			assert.Equal(t, "success", resp.Status)
			assert.Equal(t, tt.wantMode.Enabled, resp.FailureMode)
			assert.Equal(t, int(tt.wantMode.Kind), resp.FailureType)
		})
	}
}

func TestFaultHandler_ToggleRejectsBadInput(t *testing.T) {
	for _, body := range []string{`{"enable":true,"type":7}`, `{"type":0}`, `{"enable":"yes"}`, `not json`} {
		t.Run(body, func(t *testing.T) {
			inj := newInjector(fault.Mode{Kind: fault.KindTimeout})
			h := NewFaultHandler(inj)

			w, _ := toggle(t, h, body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, fault.Mode{Kind: fault.KindTimeout}, inj.Mode())
		})
	}
}

func TestFaultHandler_ConcurrentTypeOnlyToggles(t *testing.T) {
	inj := newInjector(fault.Mode{Kind: fault.KindTimeout})
	h := NewFaultHandler(inj)

	codes := make([]int, 50)
	var wg sync.WaitGroup
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := httptest.NewRecorder()
			h.Toggle(w, httptest.NewRequest(http.MethodPost, "/api/payment/failure/toggle", bytes.NewBufferString(`{"type":2}`)))
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
	// Every request flipped once, so an even count lands back on disabled.
	assert.Equal(t, fault.Mode{Enabled: false, Kind: fault.KindError}, inj.Mode())
}

func TestFaultHandler_Status(t *testing.T) {
	h := NewFaultHandler(newInjector(fault.Mode{Enabled: true, Kind: fault.KindTransport}))

	w := httptest.NewRecorder()
	h.Status(w, httptest.NewRequest(http.MethodGet, "/api/payment/failure/status", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.FaultStatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.FailureMode)
	assert.Equal(t, 3, resp.FailureType)
	assert.NotZero(t, resp.Timestamp)
}
