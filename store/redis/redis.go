// Package redis provides a Redis-backed history cache shared between
// payoutd instances.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/warp/payout-engine/config"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payouts"
	"github.com/warp/payout-engine/rewards"
)

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is empty")
	}

	opts := &goredis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout(),
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}

	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// =============================================================================
// HISTORY CACHE
// =============================================================================

// HistoryCache stores histories as JSON values under prefix + key.
type HistoryCache struct {
	client goredis.Cmdable
	prefix string
}

var _ payouts.HistoryCache = (*HistoryCache)(nil)

func NewHistoryCache(client goredis.Cmdable, prefix string) *HistoryCache {
	return &HistoryCache{client: client, prefix: prefix}
}

func (c *HistoryCache) key(k payouts.HistoryKey) string {
	return c.prefix + k.String()
}

// Get returns generic.ErrCacheMiss when the key is absent or expired.
func (c *HistoryCache) Get(ctx context.Context, k payouts.HistoryKey) ([]rewards.MonthlyStats, error) {
	data, err := c.client.Get(ctx, c.key(k)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, generic.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decode(data)
}

func (c *HistoryCache) Set(ctx context.Context, k payouts.HistoryKey, history []rewards.MonthlyStats, ttl time.Duration) error {
	data, err := encode(history)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key(k), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func encode(history []rewards.MonthlyStats) ([]byte, error) {
	data, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	return data, nil
}

func decode(data []byte) ([]rewards.MonthlyStats, error) {
	var history []rewards.MonthlyStats
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return history, nil
}
