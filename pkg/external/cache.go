package external

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCacheConfig configures the shared Redis cache
type RedisCacheConfig struct {
	RedisURL   string        `json:"redis_url"`
	DefaultTTL time.Duration `json:"default_ttl"`
}

// CacheClient caches guideline retrieval results in Redis so that several
// server instances share them.
type CacheClient struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// cachedDocuments represents cached guideline documents with metadata
type cachedDocuments struct {
	Documents []string  `json:"documents"`
	CachedAt  time.Time `json:"cached_at"`
}

// NewCacheClient creates a new cache client and verifies the connection
func NewCacheClient(config RedisCacheConfig) (*CacheClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := config.DefaultTTL
	if ttl == 0 {
		ttl = time.Hour
	}
	return &CacheClient{redis: client, defaultTTL: ttl}, nil
}

// GetDocuments retrieves cached documents for a domain and query
func (c *CacheClient) GetDocuments(ctx context.Context, evidenceDomain, query string) ([]string, bool, error) {
	key := documentsKey(evidenceDomain, query)

	val, err := c.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached documents: %w", err)
	}

	var cached cachedDocuments
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, key)
		return nil, false, nil
	}
	return cached.Documents, true, nil
}

// SetDocuments caches documents for a domain and query
func (c *CacheClient) SetDocuments(ctx context.Context, evidenceDomain, query string, docs []string) error {
	data, err := json.Marshal(cachedDocuments{Documents: docs, CachedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal cached documents: %w", err)
	}
	return c.redis.Set(ctx, documentsKey(evidenceDomain, query), data, c.defaultTTL).Err()
}

// Ping checks the Redis connection
func (c *CacheClient) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *CacheClient) Close() error {
	return c.redis.Close()
}

func documentsKey(evidenceDomain, query string) string {
	sum := sha256.Sum256([]byte(evidenceDomain + "\x00" + query))
	return "guidelines:" + evidenceDomain + ":" + hex.EncodeToString(sum[:8])
}
