package gateway

import (
	"context"
	"time"
)

// CachedReceipt is what the idempotency store keeps per completion key: the
// exact response previously returned, replayed verbatim on retry.
type CachedReceipt struct {
	StatusCode int    `json:"status_code"`
	Body       []byte `json:"body"`
}

// IdempotencyRepository is a shared TTL cache that shrinks the duplicate
// execution window. It is not the source of truth; every mutation re-checks
// persisted state before acting.
type IdempotencyRepository interface {
	// Get returns the cached receipt, or nil on a miss.
	Get(ctx context.Context, key string) (*CachedReceipt, error)

	Save(ctx context.Context, key string, receipt CachedReceipt, ttl time.Duration) error
}
