// Package searchcache caches web-search context per query in redis.
// Entries carry their own timestamp; expiry is enforced on read and by
// an explicit cleanup sweep, so the admin surface can report and prune
// entries rather than having them vanish silently.
package searchcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/metrics"
)

// ErrMiss is returned when a query has no valid cached context.
var ErrMiss = errors.New("cache miss")

const keyPrefix = "searchcache:"

// DefaultExpiry is how long an entry stays valid.
const DefaultExpiry = 24 * time.Hour

// Entry is one cached search result.
type Entry struct {
	Query     string    `json:"query"`
	Context   string    `json:"context"`
	Timestamp time.Time `json:"timestamp"`
}

// Expired reports whether the entry is older than ttl at now.
func (e Entry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.Timestamp) > ttl
}

// Stats summarizes cache state for the admin surface.
type Stats struct {
	Status      string     `json:"status"`
	Entries     int        `json:"entries"`
	OldestEntry *time.Time `json:"oldest_entry,omitempty"`
	NewestEntry *time.Time `json:"newest_entry,omitempty"`
	ExpiryHours float64    `json:"cache_expiry_hours"`
}

// Option configures the Cache.
type Option func(*Cache)

// WithExpiry sets the entry lifetime.
func WithExpiry(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.expiry = d
		}
	}
}

// WithLogger sets the logger for the cache.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// Cache is a redis-backed query cache.
type Cache struct {
	rdb    redis.UniversalClient
	expiry time.Duration
	logger *slog.Logger
}

// New connects to redis at addr.
func New(addr, password string, db int, opts ...Option) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewWithClient(rdb, opts...)
}

// NewWithClient wraps an existing redis client.
func NewWithClient(rdb redis.UniversalClient, opts ...Option) *Cache {
	c := &Cache{
		rdb:    rdb,
		expiry: DefaultExpiry,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping verifies connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis; %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Get returns the cached context for a query, or ErrMiss. An expired
// entry is deleted on read and reported as a miss.
func (c *Cache) Get(ctx context.Context, query string) (string, error) {
	key := cacheKey(query)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RecordCacheAccess("search", false)
		return "", ErrMiss
	}
	if err != nil {
		return "", fmt.Errorf("failed to read cache entry; %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// Unreadable entries are dropped rather than served.
		_ = c.rdb.Del(ctx, key).Err()
		metrics.RecordCacheAccess("search", false)
		return "", ErrMiss
	}

	if entry.Expired(time.Now(), c.expiry) {
		_ = c.rdb.Del(ctx, key).Err()
		metrics.RecordCacheAccess("search", false)
		return "", ErrMiss
	}

	metrics.RecordCacheAccess("search", true)
	return entry.Context, nil
}

// Set stores the context for a query.
func (c *Cache) Set(ctx context.Context, query, searchContext string) error {
	entry := Entry{
		Query:     query,
		Context:   searchContext,
		Timestamp: time.Now().UTC(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry; %w", err)
	}

	if err := c.rdb.Set(ctx, cacheKey(query), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to write cache entry; %w", err)
	}
	return nil
}

// Stats walks the cache and summarizes it.
func (c *Cache) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Status:      "empty",
		ExpiryHours: c.expiry.Hours(),
	}

	err := c.scan(ctx, func(key string, entry *Entry) error {
		stats.Entries++
		if entry == nil {
			return nil
		}
		ts := entry.Timestamp
		if stats.OldestEntry == nil || ts.Before(*stats.OldestEntry) {
			stats.OldestEntry = &ts
		}
		if stats.NewestEntry == nil || ts.After(*stats.NewestEntry) {
			stats.NewestEntry = &ts
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if stats.Entries > 0 {
		stats.Status = "active"
	}
	return stats, nil
}

// Clear removes every cache entry and returns the removed count.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	removed := 0
	err := c.scan(ctx, func(key string, _ *Entry) error {
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, err
	}
	return removed, nil
}

// ClearExpired removes entries past their lifetime and returns the
// removed count.
func (c *Cache) ClearExpired(ctx context.Context) (int, error) {
	now := time.Now()
	removed := 0
	err := c.scan(ctx, func(key string, entry *Entry) error {
		if entry != nil && !entry.Expired(now, c.expiry) {
			return nil
		}
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, err
	}
	if removed > 0 {
		c.logger.Info("removed expired cache entries", "count", removed)
	}
	return removed, nil
}

// RunCleaner sweeps expired entries on the interval until the context
// is cancelled.
func (c *Cache) RunCleaner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.ClearExpired(ctx); err != nil {
				c.logger.Warn("cache cleanup failed", "error", err)
			}
		}
	}
}

// scan iterates all cache keys, decoding each entry. Undecodable
// entries are passed as nil so callers can count or remove them.
func (c *Cache) scan(ctx context.Context, fn func(key string, entry *Entry) error) error {
	iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		raw, err := c.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read cache entry; %w", err)
		}

		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			if err := fn(key, nil); err != nil {
				return err
			}
			continue
		}
		if err := fn(key, &entry); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys; %w", err)
	}
	return nil
}

// cacheKey derives the redis key for a query.
func cacheKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return keyPrefix + hex.EncodeToString(sum[:])
}
