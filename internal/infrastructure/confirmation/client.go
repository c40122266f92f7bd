package confirmation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cassiomorais/storepay/internal/infrastructure/config"
	"github.com/cassiomorais/storepay/internal/infrastructure/observability"
	"github.com/cassiomorais/storepay/pkg/retry"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Status is the answer of the payment processing peer.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	// StatusPending is never returned by the peer; the client falls back to
	// it when the peer cannot be reached.
	StatusPending Status = "PENDING"
)

// Fallback reasons reported in Result when the peer did not answer.
const (
	FallbackCircuitOpen      = "circuit_open"
	FallbackRetriesExhausted = "retries_exhausted"
)

// Result is the outcome of Confirm. Fallback is empty when the peer
// answered and names the reason when Status fell back to StatusPending.
type Result struct {
	Status   Status
	Fallback string
}

// ReachedPeer reports whether at least one call got past the breaker.
func (r Result) ReachedPeer() bool {
	return r.Fallback != FallbackCircuitOpen
}

const (
	processPath = "/api/payments/process"
	breakerName = "payment-confirmation"
)

// ConfirmRequest is the body sent to the processing peer.
type ConfirmRequest struct {
	OrderID   string `json:"order_id"`
	OrderName string `json:"order_name"`
	Amount    int64  `json:"amount"`
}

// Policy holds the retry and circuit breaker parameters of the client.
type Policy struct {
	MaxAttempts    uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	CallTimeout    time.Duration

	// Breaker trips on ConsecutiveFailures in a row, or when at least
	// MinRequests were seen in the current Interval and the failure ratio
	// reaches FailureRatio.
	ConsecutiveFailures uint32
	FailureRatio        float64
	MinRequests         uint32
	Interval            time.Duration
	OpenTimeout         time.Duration
	HalfOpenMaxRequests uint32
}

func PolicyFromConfig(cfg *config.ConfirmationConfig) Policy {
	return Policy{
		MaxAttempts:         cfg.MaxAttempts,
		InitialBackoff:      cfg.InitialBackoff,
		MaxBackoff:          cfg.MaxBackoff,
		CallTimeout:         cfg.CallTimeout,
		ConsecutiveFailures: cfg.ConsecutiveFailures,
		FailureRatio:        cfg.FailureRatio,
		MinRequests:         cfg.MinRequests,
		Interval:            cfg.Interval,
		OpenTimeout:         cfg.OpenTimeout,
		HalfOpenMaxRequests: cfg.HalfOpenMaxRequests,
	}
}

func (p Policy) readyToTrip(counts gobreaker.Counts) bool {
	if p.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= p.ConsecutiveFailures {
		return true
	}
	if counts.Requests == 0 || counts.Requests < p.MinRequests {
		return false
	}
	failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
	return failureRatio >= p.FailureRatio
}

// transientError marks failures worth another attempt: transport errors,
// per-call timeouts and 5xx answers.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Client confirms order payments against the processing peer. Calls go
// through a circuit breaker, and the breaker is wrapped by a bounded retry.
type Client struct {
	baseURL    string
	httpClient *http.Client
	policy     Policy
	breaker    *gobreaker.CircuitBreaker[Status]
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

func NewClient(baseURL string, policy Policy, httpClient *http.Client, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		policy:     policy,
		logger:     observability.Component(logger, "confirmation-client"),
		metrics:    metrics,
	}

	c.breaker = gobreaker.NewCircuitBreaker[Status](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: policy.HalfOpenMaxRequests,
		Interval:    policy.Interval,
		Timeout:     policy.OpenTimeout,
		ReadyToTrip: policy.readyToTrip,
		// Only transport-level trouble counts against the peer. A business
		// FAILED answer or a rejected request is a healthy peer.
		IsSuccessful: func(err error) bool {
			return err == nil || !isTransient(err)
		},
		OnStateChange: c.onStateChange,
	})
	c.metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(stateValue(gobreaker.StateClosed))

	return c
}

func (c *Client) onStateChange(name string, from, to gobreaker.State) {
	c.logger.Warn().
		Str("breaker", name).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("circuit breaker state changed")
	c.metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// State reports the breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Confirm asks the peer to process the payment of an order. When the
// breaker is open or every attempt failed transiently, it returns
// StatusPending and a nil error so the order can be reconciled later.
func (c *Client) Confirm(ctx context.Context, req ConfirmRequest) (Result, error) {
	cfg := retry.Config{
		MaxAttempts:  c.policy.MaxAttempts,
		InitialDelay: c.policy.InitialBackoff,
		MaxDelay:     c.policy.MaxBackoff,
		RetryIf:      isTransient,
		OnRetry: func(attempt uint, err error) {
			if attempt+1 >= c.policy.MaxAttempts {
				return
			}
			c.metrics.ConfirmationRetries.Inc()
			c.logger.Debug().Err(err).
				Str("order_id", req.OrderID).
				Uint("attempt", attempt+1).
				Msg("retrying payment confirmation")
		},
	}

	status, err := retry.DoWithResult(ctx, cfg, func() (Status, error) {
		result, err := c.breaker.Execute(func() (Status, error) {
			return c.call(ctx, req)
		})
		c.recordRequest(err)
		return result, err
	})
	if err == nil {
		c.metrics.ConfirmationsTotal.WithLabelValues(string(status)).Inc()
		return Result{Status: status}, nil
	}

	if ctx.Err() != nil {
		return Result{}, fmt.Errorf("confirming order %s: %w", req.OrderID, ctx.Err())
	}

	var reason string
	switch {
	case isBreakerRejection(err):
		reason = FallbackCircuitOpen
	case isTransient(err):
		reason = FallbackRetriesExhausted
	default:
		return Result{}, fmt.Errorf("confirming order %s: %w", req.OrderID, err)
	}

	c.logger.Warn().Err(err).
		Str("order_id", req.OrderID).
		Str("reason", reason).
		Msg("payment confirmation unavailable, falling back to pending")
	c.metrics.ConfirmationFallbacks.WithLabelValues(reason).Inc()
	c.metrics.ConfirmationsTotal.WithLabelValues(string(StatusPending)).Inc()
	return Result{Status: StatusPending, Fallback: reason}, nil
}

func (c *Client) recordRequest(err error) {
	result := "success"
	switch {
	case isBreakerRejection(err):
		result = "rejected"
	case err != nil && isTransient(err):
		result = "failure"
	}
	c.metrics.CircuitBreakerRequests.WithLabelValues(breakerName, result).Inc()
}

type processResponse struct {
	Status string `json:"status"`
}

func (c *Client) call(ctx context.Context, req ConfirmRequest) (Status, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	if c.policy.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.CallTimeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+processPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &transientError{err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &transientError{err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return "", &transientError{err: fmt.Errorf("processing peer returned %d", resp.StatusCode)}
	}

	var parsed processResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}

	switch Status(strings.ToUpper(parsed.Status)) {
	case StatusSuccess:
		return StatusSuccess, nil
	case StatusFailed:
		return StatusFailed, nil
	default:
		return "", fmt.Errorf("processing peer returned status %d with unknown result %q", resp.StatusCode, parsed.Status)
	}
}
