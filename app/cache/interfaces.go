package cache

import (
	"context"
	"time"
)

// CopyCache stores generated copy keyed by content fingerprint, with a
// per-entry TTL.
type CopyCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// QuotaStore holds monotonically increasing counters with an upper bound.
// TryAcquire is a single atomic check-and-increment: under concurrent calls
// for the same key, a bound with one slot left is taken at most once.
// Release hands a slot back when the work the slot was reserved for fails.
type QuotaStore interface {
	TryAcquire(ctx context.Context, key string, limit int) (bool, error)
	Release(ctx context.Context, key string) error
	Current(ctx context.Context, key string) (int, error)
	Reset(ctx context.Context, key string) error
}
