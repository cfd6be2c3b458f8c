// Package embedding turns question text into vectors for the vector index.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ErrUnavailable marks failures where the embedding backend could not be
// reached or has no usable model. Callers fall back to lexical matching.
// Any other error from an Embedder indicates a defect and should be surfaced.
var ErrUnavailable = errors.New("embedding backend unavailable")

// Embedder produces fixed-length vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// DefaultBatchConcurrency bounds parallel requests in EmbedBatch.
const DefaultBatchConcurrency = 4

// EmbedBatch embeds texts with at most concurrency requests in flight.
// The result is index-aligned with texts. The first failure cancels the
// remaining work and is returned.
func EmbedBatch(ctx context.Context, e Embedder, texts []string, concurrency int) ([][]float32, error) {
	if concurrency < 1 {
		concurrency = DefaultBatchConcurrency
	}
	out := make([][]float32, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.Embed(ctx, text)
			if err != nil {
				return fmt.Errorf("embed item %d: %w", i, err)
			}
			out[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
