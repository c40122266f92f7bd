package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	orderApp "github.com/cassiomorais/storepay/internal/application/order"
	"github.com/cassiomorais/storepay/internal/bootstrap"
	"github.com/cassiomorais/storepay/internal/infrastructure/confirmation"
	"github.com/cassiomorais/storepay/internal/infrastructure/postgres"
	storeredis "github.com/cassiomorais/storepay/internal/infrastructure/redis"
	"github.com/cassiomorais/storepay/internal/worker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

const idempotencySweepInterval = 10 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "storepay-worker", "storepay_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	cfg := app.Config
	workerCfg := cfg.Worker

	// --- Repositories ---
	orderRepo := postgres.NewOrderRepository(app.Pool)
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	idempotencyRepo := postgres.NewIdempotencyRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Streams ---
	producer := storeredis.NewStreamProducer(app.Redis, workerCfg.Stream)
	consumer := storeredis.NewStreamConsumer(
		app.Redis,
		workerCfg.Stream,
		workerCfg.ConsumerGroup,
		cfg.InstanceID,
		workerCfg.BatchSize,
		workerCfg.BlockDuration,
	)
	if err := consumer.CreateGroup(ctx); err != nil {
		app.Logger.Fatal().Err(err).Msg("Failed to create consumer group")
	}

	// --- Use cases ---
	confirmClient := confirmation.NewClient(cfg.Confirmation.BaseURL, confirmation.PolicyFromConfig(&cfg.Confirmation), &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}, app.Logger, app.Metrics)
	reconcileUC := orderApp.NewReconcileOrderUseCase(orderRepo, outboxRepo, txManager, confirmClient,
		workerCfg.MaxOrderAttempts, app.Logger, app.Metrics)

	relay := worker.NewOutboxRelay(outboxRepo, txManager, producer, int(workerCfg.BatchSize),
		workerCfg.OutboxPollInterval, app.Logger, app.Metrics)
	reconciler := worker.NewReconciler(consumer, reconcileUC, storeredis.NewLockManager(app.Redis, app.Logger, app.Metrics),
		workerCfg.Stream, workerCfg.ReconcileLockTTL, app.Logger, app.Metrics)
	sweeper := worker.NewIdempotencySweeper(idempotencyRepo, idempotencySweepInterval, app.Logger)

	app.Logger.Info().
		Str("stream", workerCfg.Stream).
		Str("group", workerCfg.ConsumerGroup).
		Str("consumer", cfg.InstanceID).
		Msg("Worker started, listening for messages...")

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return relay.Run(gCtx) })
	g.Go(func() error { return reconciler.Run(gCtx) })
	g.Go(func() error { return sweeper.Run(gCtx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}
