package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cassiomorais/storepay/internal/domain/payment"
	"github.com/cassiomorais/storepay/internal/infrastructure/observability"
	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const verifyKeyPrefix = "payment:verify:"

// CacheOptions configures the verification cache. A positive LocalSize adds
// an in-process TinyLFU tier in front of Redis.
type CacheOptions struct {
	TTL       time.Duration
	LocalSize int
	LocalTTL  time.Duration
}

// VerificationCache stores verification envelopes by receipt id. Entries are
// only ever removed by expiry.
type VerificationCache struct {
	cache   *cache.Cache
	ttl     time.Duration
	logger  zerolog.Logger
	metrics *observability.Metrics
}

func NewVerificationCache(client redis.UniversalClient, opts CacheOptions, logger zerolog.Logger, metrics *observability.Metrics) *VerificationCache {
	cacheOpts := &cache.Options{Redis: client}
	if opts.LocalSize > 0 {
		cacheOpts.LocalCache = cache.NewTinyLFU(opts.LocalSize, opts.LocalTTL)
	}

	return &VerificationCache{
		cache:   cache.New(cacheOpts),
		ttl:     opts.TTL,
		logger:  observability.Component(logger, "verify_cache"),
		metrics: metrics,
	}
}

// Get returns the cached envelope for a receipt. A miss is (nil, false, nil).
func (c *VerificationCache) Get(ctx context.Context, receiptID string) (*payment.VerifyResult, bool, error) {
	var result payment.VerifyResult
	err := c.cache.Get(ctx, verifyKey(receiptID), &result)
	switch {
	case err == nil:
		c.metrics.CacheRequests.WithLabelValues("hit").Inc()
		return &result, true, nil
	case errors.Is(err, cache.ErrCacheMiss):
		c.metrics.CacheRequests.WithLabelValues("miss").Inc()
		return nil, false, nil
	default:
		c.metrics.CacheRequests.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("failed to read verification cache: %w", err)
	}
}

// Put stores the envelope for the configured TTL.
func (c *VerificationCache) Put(ctx context.Context, receiptID string, result *payment.VerifyResult) error {
	err := c.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   verifyKey(receiptID),
		Value: result,
		TTL:   c.ttl,
	})
	if err != nil {
		return fmt.Errorf("failed to write verification cache: %w", err)
	}

	c.logger.Debug().Str("receipt_id", receiptID).Dur("ttl", c.ttl).Msg("Cached verification result")
	return nil
}

func verifyKey(receiptID string) string {
	return verifyKeyPrefix + receiptID
}
