package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	orderApp "github.com/cassiomorais/storepay/internal/application/order"
	paymentApp "github.com/cassiomorais/storepay/internal/application/payment"
	"github.com/cassiomorais/storepay/internal/bootstrap"
	"github.com/cassiomorais/storepay/internal/fault"
	"github.com/cassiomorais/storepay/internal/infrastructure/confirmation"
	"github.com/cassiomorais/storepay/internal/infrastructure/gateway"
	"github.com/cassiomorais/storepay/internal/infrastructure/postgres"
	storeredis "github.com/cassiomorais/storepay/internal/infrastructure/redis"
	appHTTP "github.com/cassiomorais/storepay/internal/interfaces/http"
	"github.com/cassiomorais/storepay/internal/interfaces/http/handlers"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "storepay-api", "storepay")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	cfg := app.Config

	// --- Repositories ---
	paymentRepo := postgres.NewPaymentRepository(app.Pool)
	orderRepo := postgres.NewOrderRepository(app.Pool)
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	idempotencyRepo := postgres.NewIdempotencyRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Redis-backed coordination ---
	lockManager := storeredis.NewLockManager(app.Redis, app.Logger, app.Metrics)
	verifyCache := storeredis.NewVerificationCache(app.Redis, storeredis.CacheOptions{
		TTL:       cfg.Payment.VerifyCacheTTL,
		LocalSize: cfg.Payment.LocalCacheSize,
		LocalTTL:  cfg.Payment.LocalCacheTTL,
	}, app.Logger, app.Metrics)

	// --- Outbound clients ---
	injector := fault.New(fault.Mode{Enabled: cfg.Fault.Enabled, Kind: fault.Kind(cfg.Fault.Kind)},
		cfg.Fault.TimeoutDelay, app.Logger, app.Metrics)
	gatewayClient := gateway.NewClient(&cfg.Gateway, &http.Client{
		Timeout:   cfg.Gateway.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}, app.Logger, app.Metrics)
	confirmClient := confirmation.NewClient(cfg.Confirmation.BaseURL, confirmation.PolicyFromConfig(&cfg.Confirmation), &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}, app.Logger, app.Metrics)

	// --- Use cases ---
	verifyUC, err := paymentApp.NewVerifyPaymentUseCase(paymentRepo, outboxRepo, txManager, verifyCache, lockManager, injector,
		cfg.Payment.LockTTL, cfg.Fault.TimeoutDelay, app.Logger, app.Metrics)
	if err != nil {
		app.Logger.Fatal().Err(err).Msg("Invalid payment configuration")
	}
	cancelUC := paymentApp.NewCancelPaymentUseCase(paymentRepo, outboxRepo, txManager, gatewayClient, injector, app.Logger, app.Metrics)
	historyUC := paymentApp.NewListPaymentHistoryUseCase(paymentRepo)
	byOrderUC := paymentApp.NewGetPaymentByOrderUseCase(paymentRepo)
	createOrderUC := orderApp.NewCreateOrderUseCase(orderRepo, outboxRepo, txManager, confirmClient, app.Logger, app.Metrics)
	getOrderUC := orderApp.NewGetOrderUseCase(orderRepo)

	// --- Build router ---
	router := appHTTP.NewRouter(appHTTP.RouterDeps{
		Payments: handlers.NewPaymentHandler(verifyUC, cancelUC, historyUC, byOrderUC, cfg.Payment.Version, app.Logger),
		Faults:   handlers.NewFaultHandler(injector),
		Orders:   handlers.NewOrderHandler(createOrderUC, getOrderUC),
		Process:  handlers.NewProcessHandler(injector, app.Logger),
		Health: handlers.NewHealthHandler(app.Pool, handlers.PingFunc(func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		})),
		IdempotencyStore: idempotencyRepo,
		IdempotencyTTL:   cfg.Worker.IdempotencyTTL,
		Server:           cfg.Server,
		Auth:             cfg.Auth,
		Metrics:          app.Metrics,
		Gatherer:         app.Registry,
		Logger:           app.Logger,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
