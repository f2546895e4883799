// Package cache keeps per-municipality grievance statistics in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/emilythestrangee/grievance-portal/backend/internal/models"
)

const (
	keyPrefix = "stats:"
	allKey    = "all"
)

// StatsCache is a Redis-backed stats cache. A nil *StatsCache or one built
// without a client is a no-op that always misses.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Connect parses redisURL, pings the server and returns a cache on top of it.
func Connect(ctx context.Context, redisURL string, ttl time.Duration) (*StatsCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return New(client, ttl), nil
}

func New(client *redis.Client, ttl time.Duration) *StatsCache {
	return &StatsCache{client: client, ttl: ttl}
}

func key(municipality string) string {
	if municipality == "" {
		return keyPrefix + allKey
	}
	return keyPrefix + municipality
}

func (c *StatsCache) enabled() bool {
	return c != nil && c.client != nil
}

// Get returns the cached stats for a municipality ("" for all of them).
func (c *StatsCache) Get(ctx context.Context, municipality string) (*models.StatusStats, bool, error) {
	if !c.enabled() {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, key(municipality)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get stats: %w", err)
	}

	var stats models.StatusStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, false, fmt.Errorf("decode stats: %w", err)
	}
	return &stats, true, nil
}

func (c *StatsCache) Set(ctx context.Context, stats *models.StatusStats) error {
	if !c.enabled() || stats == nil {
		return nil
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	if err := c.client.Set(ctx, key(stats.Municipality), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

// Invalidate drops the entries for the given municipalities.
func (c *StatsCache) Invalidate(ctx context.Context, municipalities ...string) error {
	if !c.enabled() || len(municipalities) == 0 {
		return nil
	}
	keys := make([]string, len(municipalities))
	for i, m := range municipalities {
		keys[i] = key(m)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate stats: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (c *StatsCache) Ping(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

func (c *StatsCache) Close() error {
	if !c.enabled() {
		return nil
	}
	return c.client.Close()
}
