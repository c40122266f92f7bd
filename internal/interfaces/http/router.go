package http

import (
	"net/http"
	"time"

	"github.com/cassiomorais/storepay/internal/infrastructure/config"
	"github.com/cassiomorais/storepay/internal/infrastructure/observability"
	"github.com/cassiomorais/storepay/internal/interfaces/http/handlers"
	customMW "github.com/cassiomorais/storepay/internal/interfaces/http/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds everything the router mounts.
type RouterDeps struct {
	Payments *handlers.PaymentHandler
	Faults   *handlers.FaultHandler
	Orders   *handlers.OrderHandler
	Process  *handlers.ProcessHandler
	Health   *handlers.HealthHandler

	IdempotencyStore customMW.IdempotencyStore
	IdempotencyTTL   time.Duration

	Server  config.ServerConfig
	Auth    config.AuthConfig
	Metrics *observability.Metrics
	// Gatherer backs /metrics. Nil means the default registry.
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
}

// NewRouter creates the chi router with every route and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Server.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", customMW.IdempotencyKeyHeader, handlers.PayerHeader},
		ExposedHeaders:   []string{customMW.IdempotencyReplayedHeader, handlers.ReplayedHeader},
		AllowCredentials: deps.Server.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	r.Get("/health", deps.Health.Health)
	r.Get("/health/live", deps.Health.Liveness)
	r.Get("/health/ready", deps.Health.Readiness)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(customMW.Tracing())
		r.Use(customMW.RateLimit(deps.Server.RateLimit))

		r.Route("/api/payment", func(r chi.Router) {
			// A timeout fault stalls the request on purpose, so no
			// request timeout here.
			r.Post("/verify", deps.Payments.Verify)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(60 * time.Second))
				r.Post("/cancel", deps.Payments.Cancel)
				r.Get("/history", deps.Payments.History)
				r.Get("/order/{orderId}", deps.Payments.ByOrder)
				r.Get("/version", deps.Payments.Version)
				r.Get("/failure/status", deps.Faults.Status)
				r.With(customMW.RequireOperator(deps.Auth.JWTSecret)).Post("/failure/toggle", deps.Faults.Toggle)
			})
		})

		r.Post("/api/payments/process", deps.Process.Process)

		r.Route("/api/orders", func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.With(customMW.Idempotency(deps.IdempotencyStore, deps.IdempotencyTTL, deps.Logger)).Post("/", deps.Orders.Create)
			r.Get("/{id}", deps.Orders.Get)
		})
	})

	return r
}
