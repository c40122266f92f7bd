package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyEntry is the response to a request sent with an
// Idempotency-Key header. RequestHash fingerprints that request so a key
// reused for a different request can be told apart from a retry.
type IdempotencyEntry struct {
	Key            string
	RequestHash    string
	ResponseBody   string
	ResponseStatus int
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// Expired reports whether the entry should no longer be replayed.
func (e *IdempotencyEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

type IdempotencyRepository struct {
	pool *pgxpool.Pool
}

func NewIdempotencyRepository(pool *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

// Get returns (nil, nil) when the key is unknown or expired.
func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*IdempotencyEntry, error) {
	rows, err := ConnFromCtx(ctx, r.pool).Query(ctx,
		`SELECT key, request_hash, response_body, response_status, created_at, expires_at
		 FROM idempotency_keys WHERE key = $1 AND expires_at > NOW()`, key,
	)
	if err != nil {
		return nil, fmt.Errorf("get idempotency key %q: %w", key, err)
	}

	entry, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[IdempotencyEntry])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan idempotency key %q: %w", key, err)
	}
	return entry, nil
}

// Set stores the entry unless the key is already taken by a live entry.
// The first response stored for a key wins; an expired one is replaced.
func (r *IdempotencyRepository) Set(ctx context.Context, entry *IdempotencyEntry) error {
	_, err := ConnFromCtx(ctx, r.pool).Exec(ctx,
		`INSERT INTO idempotency_keys (key, request_hash, response_body, response_status, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (key) DO UPDATE SET
		     request_hash = EXCLUDED.request_hash,
		     response_body = EXCLUDED.response_body,
		     response_status = EXCLUDED.response_status,
		     created_at = EXCLUDED.created_at,
		     expires_at = EXCLUDED.expires_at
		 WHERE idempotency_keys.expires_at <= NOW()`,
		entry.Key, entry.RequestHash, entry.ResponseBody, entry.ResponseStatus, entry.CreatedAt, entry.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("set idempotency key %q: %w", entry.Key, err)
	}
	return nil
}

// Cleanup deletes expired keys and reports how many went.
func (r *IdempotencyRepository) Cleanup(ctx context.Context) (int64, error) {
	tag, err := ConnFromCtx(ctx, r.pool).Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
