// Package cache provides the answer cache that sits in front of the
// knowledge lookup. Keys are content hashes of normalized questions.
package cache

import (
	"context"
	"time"

	"github.com/iammorganparry/clive/apps/brain/internal/models"
)

// Tier is a bounded, expiring store of think results. Implementations must
// be safe for concurrent use. A Tier never returns an error; failures are
// reported as misses.
type Tier interface {
	Get(ctx context.Context, key string) (models.QueryResult, bool)
	Set(ctx context.Context, key string, value models.QueryResult, ttl time.Duration)
	Invalidate(ctx context.Context, key string)
	Clear(ctx context.Context)
}

// Sweeper is implemented by tiers that can drop expired entries eagerly.
type Sweeper interface {
	Sweep() int
}

// Sizer is implemented by tiers that know how many entries they hold.
type Sizer interface {
	Len() int
}

// TTLGetter is implemented by tiers that can report how long a hit has left
// to live. A non-positive remaining TTL means unknown.
type TTLGetter interface {
	GetWithTTL(ctx context.Context, key string) (models.QueryResult, time.Duration, bool)
}
