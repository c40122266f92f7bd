package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := InitLogger(tt.level, &bytes.Buffer{})
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}

func TestInitLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogger("info", &buf)

	logger.Info().Str("receipt_id", "RCPT1").Msg("verified")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "verified", line["message"])
	assert.Equal(t, "RCPT1", line["receipt_id"])
	assert.Contains(t, line, "time")
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := WithContext(InitLogger("info", &buf), map[string]any{"component": "cache"})

	logger.Info().Msg("hello")
	assert.Contains(t, buf.String(), `"component":"cache"`)
}

func TestNewMetrics_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("storepay", reg)

	m.VerificationsTotal.WithLabelValues("success").Inc()
	m.PersistenceWarnings.Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.VerificationsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PersistenceWarnings))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewTestMetrics_Independent(t *testing.T) {
	a := NewTestMetrics()
	b := NewTestMetrics()

	a.FaultInjections.WithLabelValues("error").Inc()
	assert.Equal(t, float64(0), testutil.ToFloat64(b.FaultInjections.WithLabelValues("error")))
}

func TestTracer_NoopWithoutProvider(t *testing.T) {
	_, span := Tracer("test").Start(context.Background(), "op")
	defer span.End()
	assert.NotNil(t, span)
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(InitLogger("debug", &buf), "lock")

	logger.Debug().Msg("acquired")
	assert.Contains(t, buf.String(), `"component":"lock"`)
}
