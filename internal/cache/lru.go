package cache

import (
	"context"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"

	"github.com/iammorganparry/clive/apps/brain/internal/models"
)

const (
	DefaultCapacity = 10000
	DefaultTTL      = 5 * time.Minute
)

type lruEntry struct {
	value     models.QueryResult
	expiresAt time.Time
}

// LRU is an in-process Tier with least-recently-used eviction and lazy
// per-entry expiry. Recency bookkeeping is delegated to groupcache's list;
// a separate expiry index lets Sweep find stale keys without walking it.
type LRU struct {
	mu         sync.Mutex
	cache      *lru.Cache
	expiries   map[string]time.Time
	defaultTTL time.Duration
	now        func() time.Time
}

// Option configures an LRU.
type Option func(*LRU)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *LRU) { c.now = now }
}

// NewLRU returns an LRU holding at most capacity entries. Non-positive
// arguments fall back to the defaults.
func NewLRU(capacity int, defaultTTL time.Duration, opts ...Option) *LRU {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	c := &LRU{
		cache:      lru.New(capacity),
		expiries:   make(map[string]time.Time),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	c.cache.OnEvicted = func(key lru.Key, _ any) {
		delete(c.expiries, key.(string))
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached result for key. Expired entries are removed and
// reported as a miss.
func (c *LRU) Get(ctx context.Context, key string) (models.QueryResult, bool) {
	v, _, ok := c.GetWithTTL(ctx, key)
	return v, ok
}

// GetWithTTL is Get that also reports the time left before expiry.
func (c *LRU) GetWithTTL(_ context.Context, key string) (models.QueryResult, time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.cache.Get(key)
	if !ok {
		return models.QueryResult{}, 0, false
	}
	e := v.(lruEntry)
	left := e.expiresAt.Sub(c.now())
	if left <= 0 {
		c.cache.Remove(key)
		return models.QueryResult{}, 0, false
	}
	return e.value, left, true
}

// Set stores value under key. A non-positive ttl uses the default.
func (c *LRU) Set(_ context.Context, key string, value models.QueryResult, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	expiresAt := c.now().Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(key, lruEntry{value: value, expiresAt: expiresAt})
	c.expiries[key] = expiresAt
}

func (c *LRU) Invalidate(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(key)
}

func (c *LRU) Clear(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Clear()
	clear(c.expiries)
}

// Len counts entries physically present, including expired ones not yet
// swept.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

// Sweep removes every expired entry and returns how many were dropped.
func (c *LRU) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var stale []string
	for k, exp := range c.expiries {
		if !now.Before(exp) {
			stale = append(stale, k)
		}
	}
	for _, k := range stale {
		c.cache.Remove(k)
	}
	return len(stale)
}
