package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/iammorganparry/clive/apps/brain/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func result(answer string) models.QueryResult {
	return models.QueryResult{Answer: answer, Confidence: 1, MatchType: models.MatchLexical}
}

func TestLRU(t *testing.T) {
	ctx := context.Background()

	t.Run("get after set", func(t *testing.T) {
		c := NewLRU(10, time.Minute)
		c.Set(ctx, "k", result("v"), 0)
		got, ok := c.Get(ctx, "k")
		require.True(t, ok)
		assert.Equal(t, "v", got.Answer)

		_, ok = c.Get(ctx, "missing")
		assert.False(t, ok)
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		c := NewLRU(2, time.Minute)
		c.Set(ctx, "a", result("1"), 0)
		c.Set(ctx, "b", result("2"), 0)
		_, _ = c.Get(ctx, "a") // a is now most recent
		c.Set(ctx, "c", result("3"), 0)

		_, ok := c.Get(ctx, "b")
		assert.False(t, ok, "b should have been evicted")
		_, ok = c.Get(ctx, "a")
		assert.True(t, ok)
		_, ok = c.Get(ctx, "c")
		assert.True(t, ok)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("expired entries miss", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1000, 0)}
		c := NewLRU(10, time.Minute, WithClock(clock.Now))
		c.Set(ctx, "short", result("s"), 10*time.Second)
		c.Set(ctx, "long", result("l"), 0)

		clock.Advance(10 * time.Second)
		_, ok := c.Get(ctx, "short")
		assert.False(t, ok)
		_, ok = c.Get(ctx, "long")
		assert.True(t, ok)
		assert.Equal(t, 1, c.Len(), "lazy expiry removes the entry it touched")
	})

	t.Run("sweep drops expired", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1000, 0)}
		c := NewLRU(10, time.Minute, WithClock(clock.Now))
		for i := range 5 {
			c.Set(ctx, fmt.Sprintf("k%d", i), result("v"), time.Duration(i+1)*time.Second)
		}
		clock.Advance(3 * time.Second)
		assert.Equal(t, 3, c.Sweep())
		assert.Equal(t, 2, c.Len())
	})

	t.Run("invalidate and clear", func(t *testing.T) {
		c := NewLRU(10, time.Minute)
		c.Set(ctx, "a", result("1"), 0)
		c.Set(ctx, "b", result("2"), 0)

		c.Invalidate(ctx, "a")
		_, ok := c.Get(ctx, "a")
		assert.False(t, ok)

		c.Clear(ctx)
		assert.Zero(t, c.Len())
		assert.Zero(t, c.Sweep())

		c.Set(ctx, "c", result("3"), 0)
		_, ok = c.Get(ctx, "c")
		assert.True(t, ok, "cache usable after clear")
	})

	t.Run("overwrite refreshes ttl", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1000, 0)}
		c := NewLRU(10, time.Minute, WithClock(clock.Now))
		c.Set(ctx, "k", result("old"), 5*time.Second)
		clock.Advance(4 * time.Second)
		c.Set(ctx, "k", result("new"), 5*time.Second)
		clock.Advance(4 * time.Second)

		got, ok := c.Get(ctx, "k")
		require.True(t, ok)
		assert.Equal(t, "new", got.Answer)
	})
}

func TestLRUConcurrent(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(64, time.Minute)

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 500 {
				key := fmt.Sprintf("k%d", (g*31+i)%100)
				switch i % 4 {
				case 0:
					c.Set(ctx, key, result(key), 0)
				case 1:
					c.Invalidate(ctx, key)
				default:
					if v, ok := c.Get(ctx, key); ok && v.Answer != key {
						t.Errorf("key %s returned %s", key, v.Answer)
					}
				}
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 64)
}

func TestLRUCapacityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 20).Draw(t, "capacity")
		keys := rapid.SliceOf(rapid.StringMatching(`[a-z]{1,3}`)).Draw(t, "keys")

		c := NewLRU(capacity, time.Minute)
		for _, k := range keys {
			c.Set(context.Background(), k, result(k), 0)
			if c.Len() > capacity {
				t.Fatalf("len %d exceeds capacity %d", c.Len(), capacity)
			}
		}
		if n := len(keys); n > 0 {
			last := keys[n-1]
			if _, ok := c.Get(context.Background(), last); !ok {
				t.Fatalf("most recent key %q missing", last)
			}
		}
	})
}

func TestLayered(t *testing.T) {
	ctx := context.Background()
	local := NewLRU(10, time.Minute)
	remote := NewLRU(10, time.Minute)
	l := NewLayered(local, remote, 0)

	remote.Set(ctx, "shared", result("from remote"), 0)
	got, ok := l.Get(ctx, "shared")
	require.True(t, ok)
	assert.Equal(t, "from remote", got.Answer)
	_, ok = local.Get(ctx, "shared")
	assert.True(t, ok, "remote hit is copied locally")

	l.Set(ctx, "both", result("x"), 0)
	_, ok = remote.Get(ctx, "both")
	assert.True(t, ok)

	l.Invalidate(ctx, "both")
	_, ok = l.Get(ctx, "both")
	assert.False(t, ok)

	l.Clear(ctx)
	assert.Zero(t, l.Len())
	assert.Zero(t, remote.Len())
}

// plainTier hides GetWithTTL so the remaining lifetime is unknown.
type plainTier struct{ Tier }

func TestLayeredPromotionTTL(t *testing.T) {
	ctx := context.Background()

	t.Run("promoted copy expires with the remote entry", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1000, 0)}
		local := NewLRU(10, 5*time.Minute, WithClock(clock.Now))
		remote := NewLRU(10, 5*time.Minute, WithClock(clock.Now))
		l := NewLayered(local, remote, time.Minute)

		remote.Set(ctx, "k", result("v"), 10*time.Second)
		_, ok := l.Get(ctx, "k")
		require.True(t, ok)

		clock.Advance(10 * time.Second)
		_, ok = local.Get(ctx, "k")
		assert.False(t, ok)
	})

	t.Run("promote ttl caps a long remote lifetime", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1000, 0)}
		local := NewLRU(10, 5*time.Minute, WithClock(clock.Now))
		remote := NewLRU(10, 5*time.Minute, WithClock(clock.Now))
		l := NewLayered(local, plainTier{remote}, 20*time.Second)

		remote.Set(ctx, "k", result("v"), time.Hour)
		_, ok := l.Get(ctx, "k")
		require.True(t, ok)

		// another process invalidates the shared entry
		remote.Invalidate(ctx, "k")
		clock.Advance(19 * time.Second)
		_, ok = l.Get(ctx, "k")
		assert.True(t, ok, "local copy survives until the promote ttl")

		clock.Advance(time.Second)
		_, ok = l.Get(ctx, "k")
		assert.False(t, ok)
	})
}

func TestLRUGetWithTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := NewLRU(10, time.Minute, WithClock(clock.Now))
	c.Set(ctx, "k", result("v"), 30*time.Second)

	clock.Advance(10 * time.Second)
	_, left, ok := c.GetWithTTL(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, 20*time.Second, left)
}
