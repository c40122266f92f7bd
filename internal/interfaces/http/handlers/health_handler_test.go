package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthHandler_Readiness(t *testing.T) {
	up := PingFunc(func(ctx context.Context) error { return nil })
	down := PingFunc(func(ctx context.Context) error { return errors.New("refused") })

	tests := []struct {
		name       string
		database   Pinger
		redis      Pinger
		wantStatus int
		wantBody   string
	}{
		{"all up", up, up, http.StatusOK, `{"status":"ready"}`},
		{"database down", down, up, http.StatusServiceUnavailable, `{"status":"not ready","reason":"database unavailable"}`},
		{"redis down", up, down, http.StatusServiceUnavailable, `{"status":"not ready","reason":"redis unavailable"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.database, tt.redis)
			w := httptest.NewRecorder()

			h.Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestHealthHandler_Liveness(t *testing.T) {
	h := NewHealthHandler(nil, nil)
	w := httptest.NewRecorder()

	h.Liveness(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"alive"}`, w.Body.String())
}
