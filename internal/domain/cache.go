package domain

import (
	"context"
	"time"
)

// MetricCache is a read-through cache for the latest snapshot per area.
// Cache failures are never fatal; callers fall back to the store.
type MetricCache interface {
	SetLatest(ctx context.Context, snap MarketMetricSnapshot) error
	GetLatest(ctx context.Context, area string) (MarketMetricSnapshot, error)
	Invalidate(ctx context.Context, area string) error
}

// LockManager hands out coarse distributed locks so only one process
// computes metrics for an area at a time. Acquire returns ErrLockHeld when
// the lock is taken; the returned func releases it.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// SignalBus fans events out to interested subscribers (websocket hub,
// other processes).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
