package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iammorganparry/clive/apps/brain/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeOllama returns a vector derived from the input length.
func fakeOllama(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = io.WriteString(w, `{"models":[{"name":"nomic-embed-text:latest"},{"name":"m1"}]}`)
		case "/api/embed":
			calls.Add(1)
			var req embedRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			n := float32(len(req.Input))
			_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{n, 1, 0}}})
		default:
			http.NotFound(w, r)
		}
	}))
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]*models.EmbeddingCacheEntry
	getErr  error
	putErr  error
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]*models.EmbeddingCacheEntry)}
}

func (m *memCache) Get(hash, model string) (*models.EmbeddingCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.entries[hash+"/"+model], nil
}

func (m *memCache) Put(e *models.EmbeddingCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.entries[e.ContentHash+"/"+e.Model] = e
	return nil
}

func TestOllamaClient(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	srv := fakeOllama(t, &calls)
	defer srv.Close()

	c := NewOllamaClient(srv.URL+"/", "nomic-embed-text")
	require.NoError(t, c.HealthCheck(ctx))
	assert.ErrorIs(t, NewOllamaClient(srv.URL, "llama-embed").HealthCheck(ctx), ErrUnavailable,
		"model not pulled")

	vec, err := c.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 1, 0}, vec)
	assert.Equal(t, "nomic-embed-text", c.Model())
}

func TestOllamaClientErrors(t *testing.T) {
	ctx := context.Background()

	statusServer := func(status int) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
	}

	t.Run("unreachable is unavailable", func(t *testing.T) {
		srv := statusServer(http.StatusOK)
		url := srv.URL
		srv.Close()
		_, err := NewOllamaClient(url, "m").Embed(ctx, "x")
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("missing model is unavailable", func(t *testing.T) {
		srv := statusServer(http.StatusNotFound)
		defer srv.Close()
		_, err := NewOllamaClient(srv.URL, "m").Embed(ctx, "x")
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("server error is unavailable", func(t *testing.T) {
		srv := statusServer(http.StatusServiceUnavailable)
		defer srv.Close()
		_, err := NewOllamaClient(srv.URL, "m").Embed(ctx, "x")
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("bad request is a defect", func(t *testing.T) {
		srv := statusServer(http.StatusBadRequest)
		defer srv.Close()
		_, err := NewOllamaClient(srv.URL, "m").Embed(ctx, "x")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrUnavailable))
	})
}

func TestCachedEmbedder(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	srv := fakeOllama(t, &calls)
	defer srv.Close()

	cache := newMemCache()
	e := NewCachedEmbedder(NewOllamaClient(srv.URL, "m1"), cache, 3, discardLogger())

	v1, err := e.Embed(ctx, "question")
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "question")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, int32(1), calls.Load(), "second call served from cache")

	t.Run("other model ignores cached entry", func(t *testing.T) {
		other := NewCachedEmbedder(NewOllamaClient(srv.URL, "m2"), cache, 3, discardLogger())
		_, err := other.Embed(ctx, "question")
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		wrong := NewCachedEmbedder(NewOllamaClient(srv.URL, "m3"), newMemCache(), 768, discardLogger())
		_, err := wrong.Embed(ctx, "question")
		assert.Error(t, err)
		assert.False(t, errors.Is(err, ErrUnavailable))
	})

	t.Run("models keep separate entries", func(t *testing.T) {
		before := calls.Load()
		_, err := e.Embed(ctx, "question")
		require.NoError(t, err)
		assert.Equal(t, before, calls.Load(), "m1 entry survived the m2 write")
	})

	t.Run("cache read failure falls through", func(t *testing.T) {
		broken := newMemCache()
		broken.getErr = errors.New("locked")
		e := NewCachedEmbedder(NewOllamaClient(srv.URL, "m1"), broken, 3, discardLogger())
		_, err := e.Embed(ctx, "question")
		assert.NoError(t, err)
	})

	t.Run("cache write failure is not fatal", func(t *testing.T) {
		broken := newMemCache()
		broken.putErr = errors.New("disk full")
		e := NewCachedEmbedder(NewOllamaClient(srv.URL, "m1"), broken, 3, discardLogger())
		_, err := e.Embed(ctx, "another")
		assert.NoError(t, err)
	})
}

type stubEmbedder struct {
	failOn string
}

func (s stubEmbedder) Model() string { return "stub" }

func (s stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if text == s.failOn {
		return nil, ErrUnavailable
	}
	return []float32{float32(len(text))}, nil
}

func TestEmbedBatch(t *testing.T) {
	ctx := context.Background()

	out, err := EmbedBatch(ctx, stubEmbedder{}, []string{"a", "bbb", "cc"}, 2)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {3}, {2}}, out)

	_, err = EmbedBatch(ctx, stubEmbedder{failOn: "bbb"}, []string{"a", "bbb", "cc"}, 2)
	assert.ErrorIs(t, err, ErrUnavailable)

	out, err = EmbedBatch(ctx, stubEmbedder{}, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, out)
}
