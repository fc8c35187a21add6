package domain

import (
	"context"
	"time"
)

// ResultCache stores completed scan results keyed by their parameters.
// Set replaces an entry atomically; readers never observe a partial value.
type ResultCache interface {
	Get(ctx context.Context, key string) (ScanResult, bool)
	Set(ctx context.Context, key string, value ScanResult, ttl time.Duration) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}
