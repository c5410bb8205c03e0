// Package reportcache stores rendered report payloads in Redis so
// repeated report requests for the same record skip re-rendering.
package reportcache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

// Client wraps a Redis client with the report cache envelope logic.
type Client struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// New creates a report cache client from the cache configuration.
func New(config domain.CacheConfig) (*Client, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheConnection, err)
	}

	return &Client{
		redis:      client,
		defaultTTL: config.DefaultTTL,
	}, nil
}

// Get retrieves a cached report. A miss, a corrupted entry, and an
// expired entry all return (nil, nil); the latter two also evict.
func (c *Client) Get(ctx context.Context, recordID string) (*domain.CachedReport, error) {
	key := reportKey(recordID)

	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report cache: %w", err)
	}

	var cached domain.CachedReport
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, key)
		return nil, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, nil
	}

	return &cached, nil
}

// Set caches a rendered report payload under the record's key.
func (c *Client) Set(ctx context.Context, recordID string, payload []byte) error {
	ttl := c.defaultTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	cached := domain.CachedReport{
		RecordID:  recordID,
		Payload:   payload,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}

	jsonData, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal report cache data: %w", err)
	}

	return c.redis.Set(ctx, reportKey(recordID), jsonData, ttl).Err()
}

// Invalidate removes the cached report for a record. Called whenever
// the record is re-interpreted, overridden, or deleted.
func (c *Client) Invalidate(ctx context.Context, recordID string) error {
	return c.redis.Del(ctx, reportKey(recordID)).Err()
}

// Ping checks if the Redis connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.redis.Close()
}

// reportKey creates a standardized cache key for a record's report.
func reportKey(recordID string) string {
	hash := sha256.Sum256([]byte(recordID))
	return fmt.Sprintf("report:record:%x", hash[:8]) // Use first 8 bytes of hash
}
