package cache

import (
	"context"
	"time"

	"github.com/iammorganparry/clive/apps/brain/internal/models"
)

// DefaultPromoteTTL bounds how long a remote hit lives in the local tier.
// Invalidations made by other processes only reach the remote tier, so a
// promoted copy can be stale for at most this long.
const DefaultPromoteTTL = 30 * time.Second

// Layered checks a local LRU before a shared remote tier. Remote hits are
// copied into the local tier for the shorter of their remaining remote TTL
// and the promote TTL.
type Layered struct {
	local      *LRU
	remote     Tier
	promoteTTL time.Duration
}

// NewLayered stacks local over remote. A non-positive promoteTTL uses
// DefaultPromoteTTL.
func NewLayered(local *LRU, remote Tier, promoteTTL time.Duration) *Layered {
	if promoteTTL <= 0 {
		promoteTTL = DefaultPromoteTTL
	}
	return &Layered{local: local, remote: remote, promoteTTL: promoteTTL}
}

func (l *Layered) Get(ctx context.Context, key string) (models.QueryResult, bool) {
	if v, ok := l.local.Get(ctx, key); ok {
		return v, true
	}
	ttl := l.promoteTTL
	var v models.QueryResult
	var ok bool
	if tg, isTTL := l.remote.(TTLGetter); isTTL {
		var left time.Duration
		v, left, ok = tg.GetWithTTL(ctx, key)
		if left > 0 {
			ttl = min(ttl, left)
		}
	} else {
		v, ok = l.remote.Get(ctx, key)
	}
	if ok {
		l.local.Set(ctx, key, v, ttl)
	}
	return v, ok
}

func (l *Layered) Set(ctx context.Context, key string, value models.QueryResult, ttl time.Duration) {
	l.local.Set(ctx, key, value, ttl)
	l.remote.Set(ctx, key, value, ttl)
}

func (l *Layered) Invalidate(ctx context.Context, key string) {
	l.local.Invalidate(ctx, key)
	l.remote.Invalidate(ctx, key)
}

func (l *Layered) Clear(ctx context.Context) {
	l.local.Clear(ctx)
	l.remote.Clear(ctx)
}

func (l *Layered) Len() int   { return l.local.Len() }
func (l *Layered) Sweep() int { return l.local.Sweep() }
