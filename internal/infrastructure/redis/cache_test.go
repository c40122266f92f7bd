package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cassiomorais/storepay/internal/domain/payment"
	"github.com/cassiomorais/storepay/internal/infrastructure/observability"
	"github.com/go-redis/redismock/v9"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *payment.VerifyResult {
	return payment.NewSuccessResult(payment.Details{
		ReceiptID:  "RCPT1",
		OrderID:    "ORDER_1",
		Price:      5000,
		Method:     "card",
		OrderName:  "Gift box",
		BuyerName:  "Customer",
		PayerEmail: "a@x.com",
		Status:     payment.StatusSuccess,
	})
}

func TestVerificationCache_PutGet(t *testing.T) {
	mr, client := newMiniredis(t)
	c := NewVerificationCache(client, CacheOptions{TTL: time.Hour}, zerolog.Nop(), observability.NewTestMetrics())
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "RCPT1", sampleResult()))
	assert.True(t, mr.Exists("payment:verify:RCPT1"))
	assert.Equal(t, time.Hour, mr.TTL("payment:verify:RCPT1"))

	got, ok, err := c.Get(ctx, "RCPT1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleResult(), got)
	assert.Equal(t, float64(1), testutil.ToFloat64(c.metrics.CacheRequests.WithLabelValues("hit")))
}

func TestVerificationCache_Miss(t *testing.T) {
	_, client := newMiniredis(t)
	c := NewVerificationCache(client, CacheOptions{TTL: time.Hour}, zerolog.Nop(), observability.NewTestMetrics())

	got, ok, err := c.Get(context.Background(), "unknown")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.Equal(t, float64(1), testutil.ToFloat64(c.metrics.CacheRequests.WithLabelValues("miss")))
}

func TestVerificationCache_Expires(t *testing.T) {
	mr, client := newMiniredis(t)
	c := NewVerificationCache(client, CacheOptions{TTL: time.Hour}, zerolog.Nop(), observability.NewTestMetrics())
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "RCPT1", sampleResult()))
	mr.FastForward(time.Hour + time.Second)

	_, ok, err := c.Get(ctx, "RCPT1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerificationCache_LocalTierServesWithoutRedis(t *testing.T) {
	mr, client := newMiniredis(t)
	c := NewVerificationCache(client, CacheOptions{TTL: time.Hour, LocalSize: 100, LocalTTL: time.Minute},
		zerolog.Nop(), observability.NewTestMetrics())
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "RCPT1", sampleResult()))
	mr.Del("payment:verify:RCPT1")

	got, ok, err := c.Get(ctx, "RCPT1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "RCPT1", got.Data.ReceiptID)
}

func TestVerificationCache_ReadError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewVerificationCache(db, CacheOptions{TTL: time.Hour}, zerolog.Nop(), observability.NewTestMetrics())

	mock.ExpectGet("payment:verify:RCPT1").SetErr(errors.New("connection reset"))

	_, ok, err := c.Get(context.Background(), "RCPT1")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, float64(1), testutil.ToFloat64(c.metrics.CacheRequests.WithLabelValues("error")))
	assert.NoError(t, mock.ExpectationsWereMet())
}
