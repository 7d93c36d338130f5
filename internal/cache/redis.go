package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"example.com/enrichment/internal/activity"
	"example.com/enrichment/internal/logger"
)

const keyPrefix = "enrichment:corpus:"

// RedisCorpusCache stores corpora as JSON blobs with a TTL.
type RedisCorpusCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

// RedisOptions configures NewRedisCorpusCache.
type RedisOptions struct {
	Addr     string
	Password string
	TTL      time.Duration
}

// NewRedisCorpusCache connects to Redis and verifies the connection with a ping.
func NewRedisCorpusCache(ctx context.Context, log *logger.Logger, opts RedisOptions) (*RedisCorpusCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if opts.Addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisCorpusCacheFromClient(log, rdb, opts.TTL), nil
}

// NewRedisCorpusCacheFromClient wraps an existing client.
func NewRedisCorpusCacheFromClient(log *logger.Logger, rdb *goredis.Client, ttl time.Duration) *RedisCorpusCache {
	return &RedisCorpusCache{log: log.With("component", "RedisCorpusCache"), rdb: rdb, ttl: ttl}
}

// Get returns the cached corpus for ownerID.
func (c *RedisCorpusCache) Get(ctx context.Context, ownerID string) ([]activity.Activity, bool, error) {
	raw, err := c.rdb.Get(ctx, keyPrefix+ownerID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get corpus: %w", err)
	}
	var corpus []activity.Activity
	if err := json.Unmarshal(raw, &corpus); err != nil {
		c.log.Warn("dropping undecodable corpus entry", "owner_id", ownerID, "error", err)
		_ = c.rdb.Del(ctx, keyPrefix+ownerID).Err()
		return nil, false, nil
	}
	return corpus, true, nil
}

// Set stores corpus for ownerID.
func (c *RedisCorpusCache) Set(ctx context.Context, ownerID string, corpus []activity.Activity) error {
	raw, err := json.Marshal(corpus)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, keyPrefix+ownerID, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set corpus: %w", err)
	}
	return nil
}

// Invalidate removes the cached corpus for ownerID.
func (c *RedisCorpusCache) Invalidate(ctx context.Context, ownerID string) error {
	if err := c.rdb.Del(ctx, keyPrefix+ownerID).Err(); err != nil {
		return fmt.Errorf("redis invalidate corpus: %w", err)
	}
	return nil
}

// Close releases the client.
func (c *RedisCorpusCache) Close() error {
	return c.rdb.Close()
}
