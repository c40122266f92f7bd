// Package fault lets an operator make selected payment requests fail on
// purpose, so that callers can exercise their timeouts and circuit breakers.
package fault

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cassiomorais/storepay/internal/domain/errors"
	"github.com/cassiomorais/storepay/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// Kind selects how a targeted request fails.
type Kind int

const (
	KindTimeout   Kind = 1
	KindError     Kind = 2
	KindTransport Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindError:
		return "error"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the three supported kinds.
func (k Kind) Valid() bool {
	return k >= KindTimeout && k <= KindTransport
}

// Mode is an immutable snapshot of the fault switch.
type Mode struct {
	Enabled bool `json:"enabled"`
	Kind    Kind `json:"type"`
}

// Targets are the request fields inspected for failure markers.
type Targets struct {
	OrderID   string
	OrderName string
	BuyerName string
}

var (
	// Markers honoured in every targeted field.
	anyFieldMarkers = []string{"FAILURE", "ERROR"}
	// Markers honoured in the order fields only.
	orderFieldMarkers = []string{"TEST_FAIL"}
)

// Injector holds the per-process fault mode. The zero value is not usable;
// construct with New.
type Injector struct {
	mode    atomic.Pointer[Mode]
	delay   time.Duration
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// New creates an injector starting from the given mode. delay is how long a
// KindTimeout fault holds the caller.
func New(initial Mode, delay time.Duration, logger zerolog.Logger, metrics *observability.Metrics) *Injector {
	if !initial.Kind.Valid() {
		initial.Kind = KindTimeout
	}
	inj := &Injector{
		delay:   delay,
		logger:  observability.Component(logger, "fault"),
		metrics: metrics,
	}
	inj.mode.Store(&initial)
	return inj
}

// Mode returns the current snapshot.
func (i *Injector) Mode() Mode {
	return *i.mode.Load()
}

// Set replaces the mode wholesale.
func (i *Injector) Set(m Mode) error {
	if !m.Kind.Valid() {
		return errors.NewValidationError("type", "must be 1, 2 or 3")
	}
	i.mode.Store(&m)
	i.logger.Info().Bool("enabled", m.Enabled).Str("kind", m.Kind.String()).Msg("Fault mode changed")
	return nil
}

// Update applies fn to the current mode and stores the result in one
// compare-and-swap; fn may run more than once under contention. An invalid
// kind leaves the mode untouched.
func (i *Injector) Update(fn func(Mode) Mode) (Mode, error) {
	for {
		cur := i.mode.Load()
		next := fn(*cur)
		if !next.Kind.Valid() {
			return *cur, errors.NewValidationError("type", "must be 1, 2 or 3")
		}
		if i.mode.CompareAndSwap(cur, &next) {
			i.logger.Info().Bool("enabled", next.Enabled).Str("kind", next.Kind.String()).Msg("Fault mode changed")
			return next, nil
		}
	}
}

// Toggle flips the enabled flag and keeps the kind. Concurrent toggles
// each observe a distinct previous state.
func (i *Injector) Toggle() Mode {
	m, _ := i.Update(func(cur Mode) Mode {
		return Mode{Enabled: !cur.Enabled, Kind: cur.Kind}
	})
	return m
}

// ShouldFail reports whether the request carries a failure marker while
// fault mode is enabled.
func (i *Injector) ShouldFail(t Targets) bool {
	if !i.mode.Load().Enabled {
		return false
	}

	for _, field := range []string{t.OrderID, t.OrderName, t.BuyerName} {
		if containsAny(field, anyFieldMarkers) {
			return true
		}
	}
	for _, field := range []string{t.OrderID, t.OrderName} {
		if containsAny(field, orderFieldMarkers) {
			return true
		}
	}
	return false
}

// Simulate produces the configured fault. A timeout fault blocks for the
// configured delay (or until ctx is done) and then returns nil so the
// request carries on late.
func (i *Injector) Simulate(ctx context.Context) error {
	kind := i.mode.Load().Kind
	i.metrics.FaultInjections.WithLabelValues(kind.String()).Inc()
	i.logger.Warn().Str("kind", kind.String()).Msg("Injecting fault")

	switch kind {
	case KindTimeout:
		timer := time.NewTimer(i.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	case KindError:
		return errors.ErrSimulatedFailure
	case KindTransport:
		return errors.ErrTransportFault
	default:
		return errors.ErrSimulatedFailure
	}
}

// Check runs Simulate when the targets are marked.
func (i *Injector) Check(ctx context.Context, t Targets) error {
	if !i.ShouldFail(t) {
		return nil
	}
	return i.Simulate(ctx)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
