// Package vectorindex holds nearest-neighbour indexes over question
// embeddings. An index only accelerates lookup; callers must work without one.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when a vector's length differs from the
// index dimension. It signals a programming or configuration error.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Result is one nearest-neighbour hit. Score is cosine similarity.
type Result struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Index is a nearest-neighbour store keyed by knowledge entry id.
type Index interface {
	Add(ctx context.Context, id string, vec []float32) error
	Remove(ctx context.Context, id string) error
	Search(ctx context.Context, vec []float32, k int) ([]Result, error)
	// Rebuild replaces the whole contents with vectors.
	Rebuild(ctx context.Context, vectors map[string][]float32) error
	Len() int
}

func checkDim(want int, vec []float32) error {
	if want > 0 && len(vec) != want {
		return fmt.Errorf("%w: want %d, got %d", ErrDimensionMismatch, want, len(vec))
	}
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty vector", ErrDimensionMismatch)
	}
	return nil
}
