package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ValueCache holds the latest observed oracle sample per market under key
// "market:value:{marketID}" with a short TTL. The markets table is the
// source of truth; expiry just forces a database read.
type ValueCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewValueCache creates a ValueCache backed by the given client.
func NewValueCache(c *Client, ttl time.Duration) *ValueCache {
	return &ValueCache{rdb: c.Underlying(), ttl: ttl}
}

func valueKey(marketID string) string {
	return "market:value:" + marketID
}

// SetObservedValue stores the latest sample for a market.
func (vc *ValueCache) SetObservedValue(ctx context.Context, marketID string, value float64) error {
	key := valueKey(marketID)
	val := strconv.FormatFloat(value, 'f', -1, 64)
	if err := vc.rdb.Set(ctx, key, val, vc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set value %s: %w", marketID, err)
	}
	return nil
}

// GetObservedValue retrieves the cached sample for a market. The second
// return reports whether the key was present.
func (vc *ValueCache) GetObservedValue(ctx context.Context, marketID string) (float64, bool, error) {
	val, err := vc.rdb.Get(ctx, valueKey(marketID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis: get value %s: %w", marketID, err)
	}
	value, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, fmt.Errorf("redis: parse value %s: %w", marketID, err)
	}
	return value, true, nil
}
