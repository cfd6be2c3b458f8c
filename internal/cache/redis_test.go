package cache

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisTier(t *testing.T) {
	url := os.Getenv("BRAIN_TEST_REDIS_URL")
	if url == "" {
		t.Skip("BRAIN_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r, err := NewRedisTier(ctx, url, time.Minute, logger)
	require.NoError(t, err)
	defer r.Close()
	r.prefix = "brain:test:" + t.Name() + ":"
	defer r.Clear(ctx)

	r.Set(ctx, "k", result("v"), 0)
	got, ok := r.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", got.Answer)

	r.Set(ctx, "ttl", result("t"), 30*time.Second)
	_, left, ok := r.GetWithTTL(ctx, "ttl")
	require.True(t, ok)
	assert.InDelta(t, float64(30*time.Second), float64(left), float64(2*time.Second))
	_, _, ok = r.GetWithTTL(ctx, "absent")
	assert.False(t, ok)

	r.Invalidate(ctx, "k")
	_, ok = r.Get(ctx, "k")
	assert.False(t, ok)

	r.Set(ctx, "a", result("1"), 0)
	r.Set(ctx, "b", result("2"), 0)
	r.Clear(ctx)
	_, ok = r.Get(ctx, "a")
	assert.False(t, ok)
}

func TestNewRedisTierBadURL(t *testing.T) {
	_, err := NewRedisTier(context.Background(), "://nope", time.Minute, slog.Default())
	assert.Error(t, err)
}
