package gateway

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

	domainerrors "github.com/cassiomorais/storepay/internal/domain/errors"
	"github.com/cassiomorais/storepay/internal/infrastructure/config"
	"github.com/cassiomorais/storepay/internal/infrastructure/observability"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

const (
	tokenPath   = "/request/token"
	cancelPath  = "/cancel"
	breakerName = "payment-gateway"
)

// CancelRequest is a cancellation of a previously verified receipt.
type CancelRequest struct {
	ReceiptID string
	Reason    string
}

type tokenRequest struct {
	ApplicationID string `json:"application_id"`
	PrivateKey    string `json:"private_key"`
}

type tokenResponse struct {
	Status int `json:"status"`
	Data   struct {
		Token string `json:"token"`
	} `json:"data"`
}

type cancelBody struct {
	ReceiptID      string `json:"receipt_id"`
	CancelUsername string `json:"cancel_username"`
	CancelMessage  string `json:"cancel_message"`
}

type statusEnvelope struct {
	Status int `json:"status"`
}

// Client talks to the external payment gateway. Every call goes through a
// circuit breaker that only counts transport failures.
type Client struct {
	baseURL        string
	applicationID  string
	privateKey     string
	cancelUsername string
	httpClient     *http.Client
	breaker        *gobreaker.CircuitBreaker[[]byte]
	logger         zerolog.Logger
	metrics        *observability.Metrics
}

func NewClient(cfg *config.GatewayConfig, httpClient *http.Client, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	c := &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		applicationID:  cfg.ApplicationID,
		privateKey:     cfg.PrivateKey,
		cancelUsername: cfg.CancelUsername,
		httpClient:     httpClient,
		logger:         observability.Component(logger, "gateway-client"),
		metrics:        metrics,
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 10,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, domainerrors.ErrTransportFault)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
			var v float64
			switch to {
			case gobreaker.StateHalfOpen:
				v = 1
			case gobreaker.StateOpen:
				v = 2
			}
			c.metrics.CircuitBreakerState.WithLabelValues(name).Set(v)
		},
	})

	return c
}

// Token fetches a short-lived access token for the gateway API. Every
// failure wraps ErrGatewayAuth; transport failures also keep
// ErrTransportFault.
func (c *Client) Token(ctx context.Context) (string, error) {
	raw, status, err := c.post(ctx, tokenPath, "", tokenRequest{
		ApplicationID: c.applicationID,
		PrivateKey:    c.privateKey,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domainerrors.ErrGatewayAuth, err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d: %w", status, domainerrors.ErrGatewayAuth)
	}

	var resp tokenResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", domainerrors.ErrGatewayAuth)
	}
	if resp.Status != http.StatusOK || resp.Data.Token == "" {
		return "", fmt.Errorf("token response status %d: %w", resp.Status, domainerrors.ErrGatewayAuth)
	}
	return resp.Data.Token, nil
}

// Cancel authenticates and asks the gateway to cancel a receipt. It returns
// the raw gateway answer on success.
func (c *Client) Cancel(ctx context.Context, req CancelRequest) ([]byte, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	raw, status, err := c.post(ctx, cancelPath, token, cancelBody{
		ReceiptID:      req.ReceiptID,
		CancelUsername: c.cancelUsername,
		CancelMessage:  req.Reason,
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("cancel endpoint returned %d: %w", status, domainerrors.ErrGatewayRejected)
	}

	var env statusEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Status != http.StatusOK {
		return nil, fmt.Errorf("cancel of receipt %s refused: %w", req.ReceiptID, domainerrors.ErrGatewayRejected)
	}
	return raw, nil
}

func (c *Client) post(ctx context.Context, path, bearer string, payload any) ([]byte, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request body: %w", err)
	}

	var status int
	raw, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s: %v: %w", path, err, domainerrors.ErrTransportFault)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: reading response: %v: %w", path, err, domainerrors.ErrTransportFault)
		}
		status = resp.StatusCode
		if status >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%s returned %d: %w", path, status, domainerrors.ErrTransportFault)
		}
		return raw, nil
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
		return nil, 0, fmt.Errorf("%s: %v: %w", path, err, domainerrors.ErrTransportFault)
	case err != nil:
		c.metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
		c.logger.Error().Err(err).Str("path", path).Msg("gateway call failed")
		return nil, 0, err
	}
	c.metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
	return raw, status, nil
}
