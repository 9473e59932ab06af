// Package cache keeps built candle series in Redis so refreshes only fetch recent trades.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"poolDesk/internal/model"
)

const defaultPrefix = "desk:candles:"

// RedisCandleCache stores candle series as JSON values with a TTL.
type RedisCandleCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisCandleCache(client redis.Cmdable, prefix string, ttl time.Duration) *RedisCandleCache {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisCandleCache{client: client, prefix: prefix, ttl: ttl}
}

// Load returns the cached series, or nil when nothing is cached.
func (c *RedisCandleCache) Load(ctx context.Context, key string) ([]model.Candle, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached candles: %w", err)
	}

	var candles []model.Candle
	if err := json.Unmarshal(data, &candles); err != nil {
		return nil, fmt.Errorf("decode cached candles: %w", err)
	}
	return candles, nil
}

func (c *RedisCandleCache) Store(ctx context.Context, key string, candles []model.Candle) error {
	data, err := json.Marshal(candles)
	if err != nil {
		return fmt.Errorf("encode candles: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached candles: %w", err)
	}
	return nil
}

// Invalidate drops the cached series for key.
func (c *RedisCandleCache) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}
