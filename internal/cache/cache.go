package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"linkloom/internal/logging"
	"linkloom/internal/metrics"
)

// Cache is a two-tier byte cache: L1 in memory, L2 Redis when configured.
// A nil *Cache is valid and never hits.
type Cache struct {
	mu         sync.Mutex
	l1         map[string]entry
	rdb        *redis.Client
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

type entry struct {
	data      []byte
	expiresAt time.Time
}

// New builds a cache. An empty or unreachable redisURL leaves L2 disabled.
func New(ctx context.Context, redisURL string, ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	c := &Cache{l1: make(map[string]entry), ttl: ttl, maxEntries: maxEntries, now: time.Now}
	if redisURL == "" {
		return c
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logging.Warn("cache_redis_url_invalid", map[string]any{"error": err.Error()})
		return c
	}
	rdb := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		logging.Warn("cache_redis_unreachable", map[string]any{"error": err.Error()})
		_ = rdb.Close()
		return c
	}
	c.rdb = rdb
	logging.Info("cache_redis_connected", map[string]any{"addr": opts.Addr})
	return c
}

// Key builds a deterministic cache key from parts.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("ll:%x", sum[:12])
}

// Get tries L1 then L2. An L2 hit repopulates L1.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	e, ok := c.l1[key]
	if ok && c.now().After(e.expiresAt) {
		delete(c.l1, key)
		ok = false
	}
	c.mu.Unlock()
	if ok {
		metrics.IncCacheLookup("l1", "hit")
		return e.data, true
	}
	metrics.IncCacheLookup("l1", "miss")
	if c.rdb == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		metrics.IncCacheLookup("l2", "miss")
		return nil, false
	}
	metrics.IncCacheLookup("l2", "hit")
	c.storeL1(key, data)
	return data, true
}

// Set writes through both tiers. L2 failures are logged and ignored.
func (c *Cache) Set(ctx context.Context, key string, data []byte) {
	if c == nil {
		return
	}
	c.storeL1(key, data)
	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			logging.Warn("cache_redis_set_failed", map[string]any{"error": err.Error()})
		}
	}
}

// Len reports live L1 entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.l1)
}

// Close releases the Redis connection if any.
func (c *Cache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func (c *Cache) storeL1(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if len(c.l1) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.l1[key] = entry{data: data, expiresAt: now.Add(c.ttl)}
}

// evictLocked drops expired entries, then the soonest-expiring one if still full.
func (c *Cache) evictLocked(now time.Time) {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.l1 {
		if now.After(e.expiresAt) {
			delete(c.l1, k)
			continue
		}
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey, oldest = k, e.expiresAt
		}
	}
	if len(c.l1) >= c.maxEntries && oldestKey != "" {
		delete(c.l1, oldestKey)
	}
}
