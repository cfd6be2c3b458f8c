package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/iammorganparry/clive/apps/brain/internal/models"
	"github.com/iammorganparry/clive/apps/brain/internal/vectorindex"
)

// CacheStore persists embeddings by content hash and model.
type CacheStore interface {
	Get(contentHash, model string) (*models.EmbeddingCacheEntry, error)
	Put(entry *models.EmbeddingCacheEntry) error
}

// CachedEmbedder serves repeat texts from a CacheStore and only calls the
// inner embedder on a miss. Cache failures never fail Embed.
type CachedEmbedder struct {
	inner  Embedder
	cache  CacheStore
	dim    int
	logger *slog.Logger
}

// NewCachedEmbedder wraps inner. A positive dim rejects vectors of any
// other length before they reach the cache or the index.
func NewCachedEmbedder(inner Embedder, cache CacheStore, dim int, logger *slog.Logger) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache, dim: dim, logger: logger}
}

func (e *CachedEmbedder) Model() string { return e.inner.Model() }

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	hash := ContentHash(text)
	model := e.inner.Model()

	if hit, err := e.cache.Get(hash, model); err != nil {
		e.logger.Warn("embedding cache read failed", "hash", hash, "error", err)
	} else if hit != nil && (e.dim <= 0 || hit.Dimension == e.dim) {
		vec, err := vectorindex.DecodeVector(hit.Embedding)
		if err == nil {
			return vec, nil
		}
		e.logger.Warn("discarding corrupt cached embedding", "hash", hash, "error", err)
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if e.dim > 0 && len(vec) != e.dim {
		return nil, fmt.Errorf("%w: model %s returned %d dimensions, want %d",
			vectorindex.ErrDimensionMismatch, model, len(vec), e.dim)
	}

	err = e.cache.Put(&models.EmbeddingCacheEntry{
		ContentHash: hash,
		Model:       model,
		Embedding:   vectorindex.EncodeVector(vec),
		Dimension:   len(vec),
	})
	if err != nil {
		e.logger.Warn("embedding cache write failed", "hash", hash, "error", err)
	}
	return vec, nil
}

// ContentHash is the hex SHA-256 of text, used as the cache key.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
