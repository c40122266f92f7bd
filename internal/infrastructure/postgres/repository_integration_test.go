//go:build integration

package postgres

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/storepay/internal/domain/errors"
	"github.com/cassiomorais/storepay/internal/domain/order"
	"github.com/cassiomorais/storepay/internal/domain/outbox"
	"github.com/cassiomorais/storepay/internal/domain/payment"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("storepay"),
		tcpostgres.WithUsername("storepay"),
		tcpostgres.WithPassword("storepay"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, Migrate("migrations", url, "up"))

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func newRecord(t *testing.T, receiptID, payer string) *payment.Record {
	t.Helper()
	rec, err := payment.NewRecord(payment.Details{
		ReceiptID:  receiptID,
		OrderID:    "ORDER_" + receiptID,
		Price:      5000,
		Method:     "card",
		OrderName:  "Gift box",
		BuyerName:  "Customer",
		PayerEmail: payer,
		Status:     payment.StatusSuccess,
	}, []byte(`{"receipt_id":"`+receiptID+`"}`))
	require.NoError(t, err)
	return rec
}

func TestPaymentRepository_Integration(t *testing.T) {
	pool := setupDB(t)
	repo := NewPaymentRepository(pool)
	ctx := context.Background()

	rec := newRecord(t, "RCPT1", "a@x.com")
	require.NoError(t, repo.Create(ctx, rec))
	assert.NotZero(t, rec.ID)

	got, err := repo.GetByReceiptID(ctx, "RCPT1")
	require.NoError(t, err)
	assert.Equal(t, rec.Details(), got.Details())

	_, err = repo.GetByReceiptID(ctx, "missing")
	assert.ErrorIs(t, err, domainErrors.ErrPaymentNotFound)

	err = repo.Create(ctx, newRecord(t, "RCPT1", "a@x.com"))
	assert.ErrorIs(t, err, domainErrors.ErrDuplicateReceipt)

	byOrder, err := repo.GetByOrderID(ctx, "ORDER_RCPT1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, byOrder.ID)

	require.NoError(t, got.MarkCancelled([]byte(`{"status":200}`)))
	require.NoError(t, repo.Update(ctx, got))

	cancelled, err := repo.GetByReceiptID(ctx, "RCPT1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCancelled, cancelled.Status)
	assert.JSONEq(t, `{"status":200}`, string(cancelled.RawResponse))
}

func TestPaymentRepository_ConcurrentCreateSameReceipt(t *testing.T) {
	pool := setupDB(t)
	repo := NewPaymentRepository(pool)
	ctx := context.Background()

	const n = 10
	records := make([]*payment.Record, n)
	for i := range records {
		records[i] = newRecord(t, "RACE1", "a@x.com")
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.Create(ctx, records[i])
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, domainErrors.ErrDuplicateReceipt)
		}
	}
	assert.Equal(t, 1, ok)

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM payment_records WHERE receipt_id = 'RACE1'`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestPaymentRepository_ListByPayerNewestFirst(t *testing.T) {
	pool := setupDB(t)
	repo := NewPaymentRepository(pool)
	ctx := context.Background()

	first := newRecord(t, "R-1", "list@x.com")
	require.NoError(t, repo.Create(ctx, first))
	second := newRecord(t, "R-2", "list@x.com")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, newRecord(t, "R-3", "other@x.com")))

	records, err := repo.ListByPayer(ctx, "list@x.com")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "R-2", records[0].ReceiptID)
	assert.Equal(t, "R-1", records[1].ReceiptID)
}

func TestTxManager_RollsBackRecordAndOutbox(t *testing.T) {
	pool := setupDB(t)
	txm := NewTxManager(pool)
	payments := NewPaymentRepository(pool)
	outboxRepo := NewOutboxRepository(pool)
	ctx := context.Background()

	err := txm.WithTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, payments.Create(ctx, newRecord(t, "TX1", "a@x.com")))
		require.NoError(t, outboxRepo.Insert(ctx, outbox.NewEntry("payment", "TX1", outbox.EventPaymentVerified, nil)))
		return domainErrors.ErrValidationFailed
	})
	assert.ErrorIs(t, err, domainErrors.ErrValidationFailed)

	_, err = payments.GetByReceiptID(ctx, "TX1")
	assert.ErrorIs(t, err, domainErrors.ErrPaymentNotFound)

	pending, err := outboxRepo.GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOutboxRepository_Lifecycle(t *testing.T) {
	pool := setupDB(t)
	repo := NewOutboxRepository(pool)
	ctx := context.Background()

	entry := outbox.NewEntry("order", "o-1", outbox.EventOrderPaymentPending, map[string]any{"amount": 5000})
	entry.MaxRetries = 2
	require.NoError(t, repo.Insert(ctx, entry))

	pending, err := repo.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "o-1", pending[0].AggregateID)
	assert.Equal(t, float64(5000), pending[0].Payload["amount"])

	dead, err := repo.MarkFailed(ctx, entry.ID)
	require.NoError(t, err)
	assert.False(t, dead)
	pending, err = repo.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1, "one failure stays pending")

	dead, err = repo.MarkFailed(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, dead)
	pending, err = repo.GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "max retries reached")
}

func TestOrderRepository_Integration(t *testing.T) {
	pool := setupDB(t)
	repo := NewOrderRepository(pool)
	ctx := context.Background()

	o, err := order.NewOrder("user-1", "Gift box", 5000)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, o))

	o.RecordAttempt()
	require.NoError(t, o.TransitionTo(order.StatusCompleted))
	require.NoError(t, repo.Update(ctx, o))

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCompleted, got.Status)
	assert.Equal(t, 1, got.PaymentAttempts)
}

func TestIdempotencyRepository_Integration(t *testing.T) {
	pool := setupDB(t)
	repo := NewIdempotencyRepository(pool)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, repo.Set(ctx, &IdempotencyEntry{
		Key: "k1", RequestHash: hash("a"), ResponseBody: `{"ok":true}`, ResponseStatus: 201, CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))
	require.NoError(t, repo.Set(ctx, &IdempotencyEntry{
		Key: "k1", RequestHash: hash("b"), ResponseBody: `{"ok":false}`, ResponseStatus: 400, CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))
	require.NoError(t, repo.Set(ctx, &IdempotencyEntry{
		Key: "old", RequestHash: hash("c"), ResponseBody: `{}`, ResponseStatus: 200, CreatedAt: now, ExpiresAt: now.Add(-time.Hour),
	}))

	got, err := repo.Get(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 201, got.ResponseStatus, "first response wins")
	assert.Equal(t, hash("a"), got.RequestHash)

	expired, err := repo.Get(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, expired)

	n, err := repo.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func hash(s string) string {
	return strings.Repeat(s, 64)[:64]
}
