package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iammorganparry/clive/apps/brain/internal/models"
)

const defaultRedisPrefix = "brain:answer:"

// RedisTier shares cached answers between processes. Redis failures are
// logged and surface as misses.
type RedisTier struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
	logger     *slog.Logger
}

// NewRedisTier connects to the Redis server at url (redis://host:port/db)
// and verifies it responds.
func NewRedisTier(ctx context.Context, url string, defaultTTL time.Duration, logger *slog.Logger) (*RedisTier, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &RedisTier{client: client, prefix: defaultRedisPrefix, defaultTTL: defaultTTL, logger: logger}, nil
}

func (r *RedisTier) Get(ctx context.Context, key string) (models.QueryResult, bool) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.QueryResult{}, false
	}
	if err != nil {
		r.logger.Warn("redis cache get failed", "key", key, "error", err)
		return models.QueryResult{}, false
	}
	return r.decode(key, data)
}

// GetWithTTL reads the value and its remaining PTTL in one round trip.
func (r *RedisTier) GetWithTTL(ctx context.Context, key string) (models.QueryResult, time.Duration, bool) {
	pipe := r.client.Pipeline()
	get := pipe.Get(ctx, r.prefix+key)
	pttl := pipe.PTTL(ctx, r.prefix+key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		r.logger.Warn("redis cache get failed", "key", key, "error", err)
		return models.QueryResult{}, 0, false
	}
	data, err := get.Bytes()
	if err != nil {
		return models.QueryResult{}, 0, false
	}
	res, ok := r.decode(key, data)
	if !ok {
		return models.QueryResult{}, 0, false
	}
	// PTTL reports -1 and -2 for no expiry and a vanished key.
	left := pttl.Val()
	if left < 0 {
		left = 0
	}
	return res, left, true
}

func (r *RedisTier) decode(key string, data []byte) (models.QueryResult, bool) {
	var res models.QueryResult
	if err := json.Unmarshal(data, &res); err != nil {
		r.logger.Error("redis cache entry undecodable", "key", key, "error", err)
		return models.QueryResult{}, false
	}
	return res, true
}

func (r *RedisTier) Set(ctx context.Context, key string, value models.QueryResult, ttl time.Duration) {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	data, err := json.Marshal(value)
	if err != nil {
		r.logger.Error("encode cache entry", "key", key, "error", err)
		return
	}
	if err := r.client.Set(ctx, r.prefix+key, data, ttl).Err(); err != nil {
		r.logger.Warn("redis cache set failed", "key", key, "error", err)
	}
}

func (r *RedisTier) Invalidate(ctx context.Context, key string) {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		r.logger.Warn("redis cache invalidate failed", "key", key, "error", err)
	}
}

// Clear deletes every key under the tier's prefix. Other data in the same
// Redis database is left alone.
func (r *RedisTier) Clear(ctx context.Context) {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 500).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 500 {
			r.del(ctx, batch)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		r.logger.Warn("redis cache scan failed", "error", err)
	}
	r.del(ctx, batch)
}

func (r *RedisTier) del(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.logger.Warn("redis cache clear failed", "error", err)
	}
}

// Close releases the connection pool.
func (r *RedisTier) Close() error {
	return r.client.Close()
}
