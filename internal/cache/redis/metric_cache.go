package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omaralj/propwatch/internal/domain"
)

const metricTTL = 10 * time.Minute

// MetricCache implements domain.MetricCache using per-area Redis keys with
// JSON-serialized snapshots.
//
// Key schema:
//
//	metrics:latest:{area} - JSON of the newest MarketMetricSnapshot
type MetricCache struct {
	rdb *redis.Client
}

// NewMetricCache creates a MetricCache backed by the given Client.
func NewMetricCache(c *Client) *MetricCache {
	return &MetricCache{rdb: c.Underlying()}
}

func metricKey(area string) string { return "metrics:latest:" + area }

// SetLatest stores the newest snapshot for an area with a 10-minute TTL.
func (mc *MetricCache) SetLatest(ctx context.Context, snap domain.MarketMetricSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %s: %w", snap.Area, err)
	}
	if err := mc.rdb.Set(ctx, metricKey(snap.Area), data, metricTTL).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", snap.Area, err)
	}
	return nil
}

// GetLatest retrieves the cached newest snapshot for an area.
// It returns domain.ErrNotFound when the key does not exist.
func (mc *MetricCache) GetLatest(ctx context.Context, area string) (domain.MarketMetricSnapshot, error) {
	data, err := mc.rdb.Get(ctx, metricKey(area)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.MarketMetricSnapshot{}, domain.ErrNotFound
		}
		return domain.MarketMetricSnapshot{}, fmt.Errorf("redis: get snapshot %s: %w", area, err)
	}

	var snap domain.MarketMetricSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.MarketMetricSnapshot{}, fmt.Errorf("redis: unmarshal snapshot %s: %w", area, err)
	}
	return snap, nil
}

// Invalidate drops the cached snapshot for an area.
func (mc *MetricCache) Invalidate(ctx context.Context, area string) error {
	if err := mc.rdb.Del(ctx, metricKey(area)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate snapshot %s: %w", area, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MetricCache = (*MetricCache)(nil)
