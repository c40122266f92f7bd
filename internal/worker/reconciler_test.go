package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	orderApp "github.com/cassiomorais/storepay/internal/application/order"
	"github.com/cassiomorais/storepay/internal/domain/order"
	"github.com/cassiomorais/storepay/internal/domain/outbox"
	"github.com/cassiomorais/storepay/internal/infrastructure/confirmation"
	"github.com/cassiomorais/storepay/internal/infrastructure/observability"
	storeredis "github.com/cassiomorais/storepay/internal/infrastructure/redis"
	"github.com/cassiomorais/storepay/internal/testutil"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGroup = "order-reconcilers"

type reconcilerFixture struct {
	client    *redis.Client
	producer  *storeredis.StreamProducer
	consumer  *storeredis.StreamConsumer
	orders    *testutil.MockOrderRepository
	confirmer *testutil.MockConfirmer
	locker    *testutil.MockLocker
	rec       *Reconciler
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()
	client := newRedis(t)
	consumer := storeredis.NewStreamConsumer(client, storeredis.EventStream, testGroup, "worker-1", 10, 10*time.Millisecond)
	require.NoError(t, consumer.CreateGroup(context.Background()))

	f := &reconcilerFixture{
		client:    client,
		producer:  storeredis.NewStreamProducer(client, ""),
		consumer:  consumer,
		orders:    testutil.NewMockOrderRepository(),
		confirmer: &testutil.MockConfirmer{},
		locker:    testutil.NewMockLocker(),
	}
	metrics := observability.NewTestMetrics()
	settler := orderApp.NewReconcileOrderUseCase(f.orders, &testutil.MockOutboxRepository{}, testutil.NewMockTransactionManager(),
		f.confirmer, 5, zerolog.Nop(), metrics)
	f.rec = NewReconciler(consumer, settler, f.locker, storeredis.EventStream, time.Second, zerolog.Nop(), metrics)
	return f
}

func (f *reconcilerFixture) publish(t *testing.T, aggregateID, eventType string) *storeredis.Event {
	t.Helper()
	ctx := context.Background()
	_, err := f.producer.Publish(ctx, outbox.NewEntry("order", aggregateID, eventType, map[string]any{"order_id": aggregateID}))
	require.NoError(t, err)

	events, err := f.consumer.Read(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	return events[0]
}

func (f *reconcilerFixture) pending(t *testing.T) int64 {
	t.Helper()
	p, err := f.client.XPending(context.Background(), storeredis.EventStream, testGroup).Result()
	require.NoError(t, err)
	return p.Count
}

func TestReconciler_SettlesPendingOrder(t *testing.T) {
	f := newReconcilerFixture(t)
	o := testutil.NewTestOrder()
	f.orders.AddOrder(o)

	ev := f.publish(t, o.ID.String(), outbox.EventOrderPaymentPending)

	assert.True(t, f.rec.Handle(context.Background(), ev))

	got, err := f.orders.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCompleted, got.Status)
	assert.Equal(t, 1, got.PaymentAttempts)
	assert.Equal(t, int64(0), f.pending(t))
}

func TestReconciler_SettledOrderIsNotConfirmedAgain(t *testing.T) {
	f := newReconcilerFixture(t)
	o := testutil.NewTestOrder()
	o.Status = order.StatusCompleted
	f.orders.AddOrder(o)

	ev := f.publish(t, o.ID.String(), outbox.EventOrderPaymentPending)

	assert.True(t, f.rec.Handle(context.Background(), ev))
	assert.Zero(t, f.confirmer.Calls())
}

func TestReconciler_BusyOrderStaysPending(t *testing.T) {
	f := newReconcilerFixture(t)
	o := testutil.NewTestOrder()
	f.orders.AddOrder(o)
	f.locker.WithLockFunc = func(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
		assert.Equal(t, "order:reconcile:"+o.ID.String(), key)
		return false, nil
	}

	ev := f.publish(t, o.ID.String(), outbox.EventOrderPaymentPending)

	assert.False(t, f.rec.Handle(context.Background(), ev))
	assert.Zero(t, f.confirmer.Calls())
	assert.Equal(t, int64(1), f.pending(t))
}

func TestReconciler_FailureLeavesMessageForRetry(t *testing.T) {
	f := newReconcilerFixture(t)
	f.orders.GetByIDFunc = func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
		return nil, errors.New("connection refused")
	}

	ev := f.publish(t, uuid.NewString(), outbox.EventOrderPaymentPending)

	assert.False(t, f.rec.Handle(context.Background(), ev))
	assert.Equal(t, int64(1), f.pending(t))
}

func TestReconciler_AcksOtherEvents(t *testing.T) {
	tests := []struct {
		name        string
		aggregateID string
		eventType   string
	}{
		{"payment event", "R-100", outbox.EventPaymentVerified},
		{"malformed order id", "not-a-uuid", outbox.EventOrderPaymentPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReconcilerFixture(t)

			ev := f.publish(t, tt.aggregateID, tt.eventType)

			assert.True(t, f.rec.Handle(context.Background(), ev))
			assert.Zero(t, f.confirmer.Calls())
			assert.Equal(t, int64(0), f.pending(t))
		})
	}
}

func TestReconciler_Run(t *testing.T) {
	f := newReconcilerFixture(t)
	o := testutil.NewTestOrder()
	f.orders.AddOrder(o)
	f.confirmer.ConfirmFunc = func(ctx context.Context, req confirmation.ConfirmRequest) (confirmation.Result, error) {
		return confirmation.Result{Status: confirmation.StatusFailed}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.rec.Run(ctx) }()

	_, err := f.producer.Publish(ctx, outbox.NewEntry("order", o.ID.String(), outbox.EventOrderPaymentPending, nil))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := f.orders.GetByID(context.Background(), o.ID)
		return err == nil && got.Status == order.StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler did not stop")
	}
}
