package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"predictionarena/models"

	"github.com/redis/go-redis/v9"
)

// LeaderboardCache stores ranked leaderboard projections as JSON under key
// "leaderboard:{limit}" with a TTL. Settlement invalidates all leaderboard
// keys so rankings reflect new results on the next read.
type LeaderboardCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewLeaderboardCache creates a LeaderboardCache backed by the given client.
func NewLeaderboardCache(c *Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{rdb: c.Underlying(), ttl: ttl}
}

func leaderboardKey(limit int) string {
	return "leaderboard:" + strconv.Itoa(limit)
}

// GetLeaderboard retrieves a cached projection for the given limit. The
// second return reports whether the key was present.
func (lc *LeaderboardCache) GetLeaderboard(ctx context.Context, limit int) ([]*models.LeaderboardEntry, bool, error) {
	raw, err := lc.rdb.Get(ctx, leaderboardKey(limit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis: get leaderboard: %w", err)
	}

	var entries []*models.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false, fmt.Errorf("redis: decode leaderboard: %w", err)
	}
	return entries, true, nil
}

// SetLeaderboard stores a projection for the given limit.
func (lc *LeaderboardCache) SetLeaderboard(ctx context.Context, limit int, entries []*models.LeaderboardEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("redis: encode leaderboard: %w", err)
	}
	if err := lc.rdb.Set(ctx, leaderboardKey(limit), raw, lc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set leaderboard: %w", err)
	}
	return nil
}

// Invalidate drops every cached leaderboard projection.
func (lc *LeaderboardCache) Invalidate(ctx context.Context) error {
	iter := lc.rdb.Scan(ctx, 0, "leaderboard:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := lc.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis: delete %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis: scan leaderboard keys: %w", err)
	}
	return nil
}
