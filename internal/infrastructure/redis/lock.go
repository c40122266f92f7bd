package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	domainErrors "github.com/cassiomorais/storepay/internal/domain/errors"
	"github.com/cassiomorais/storepay/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// Only the owner token may delete the key.
	releaseLockScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

	extendLockScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("pexpire", KEYS[1], ARGV[2]) else return 0 end`

	releaseTimeout = 5 * time.Second
)

// LockManager hands out short-lived exclusive locks stored in Redis. A
// crashed holder needs no reaper: the key expires with its TTL.
type LockManager struct {
	client   redis.UniversalClient
	logger   zerolog.Logger
	metrics  *observability.Metrics
	newToken func() string
}

func NewLockManager(client redis.UniversalClient, logger zerolog.Logger, metrics *observability.Metrics) *LockManager {
	return &LockManager{
		client:   client,
		logger:   observability.Component(logger, "lock"),
		metrics:  metrics,
		newToken: uuid.NewString,
	}
}

// Lock is a held lock. Its owner token never leaves the process.
type Lock struct {
	client redis.UniversalClient
	key    string
	token  string
}

// Acquire sets key if absent. ok is false when another holder has it.
func (m *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, bool, error) {
	token := m.newToken()

	ok, err := m.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		m.metrics.LockAcquisitions.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		m.metrics.LockAcquisitions.WithLabelValues("busy").Inc()
		return nil, false, nil
	}

	m.metrics.LockAcquisitions.WithLabelValues("acquired").Inc()
	return &Lock{client: m.client, key: key, token: token}, true, nil
}

// WithLock runs fn while holding key. acquired is false, with a nil error,
// when someone else holds the key. The lock is released on every exit path,
// panics included, on a context that survives cancellation of ctx.
// Redis failures wrap ErrLockUnavailable.
func (m *LockManager) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (acquired bool, err error) {
	lock, ok, err := m.Acquire(ctx, key, ttl)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domainErrors.ErrLockUnavailable, err)
	}
	if !ok {
		return false, nil
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if relErr := lock.Release(releaseCtx); relErr != nil {
			m.logger.Error().Err(relErr).Str("key", key).Msg("Failed to release lock")
		}
	}()

	return true, fn(ctx)
}

// Key returns the Redis key guarding this lock.
func (l *Lock) Key() string {
	return l.key
}

// Release deletes the key if this lock still owns it. Releasing an expired
// or already released lock is a no-op.
func (l *Lock) Release(ctx context.Context) error {
	if _, err := l.client.Eval(ctx, releaseLockScript, []string{l.key}, l.token).Result(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	return nil
}

// Extend resets the TTL of a lock this holder still owns.
func (l *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	result, err := l.client.Eval(ctx, extendLockScript, []string{l.key}, l.token, strconv.FormatInt(ttl.Milliseconds(), 10)).Result()
	if err != nil {
		return fmt.Errorf("failed to extend lock %s: %w", l.key, err)
	}
	if result == int64(0) {
		return fmt.Errorf("extend %s: %w", l.key, domainErrors.ErrLockNotHeld)
	}
	return nil
}
