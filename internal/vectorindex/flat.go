package vectorindex

import (
	"context"
	"sort"
	"sync"
)

// FlatIndex is an exact in-process index. Vectors are stored unit-length so
// a search is one inner product per entry.
type FlatIndex struct {
	mu      sync.RWMutex
	dim     int
	vectors map[string][]float32
}

// NewFlatIndex returns an index for vectors of length dim. A zero dim is
// fixed by the first vector added.
func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{dim: dim, vectors: make(map[string][]float32)}
}

func (f *FlatIndex) Add(_ context.Context, id string, vec []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dim == 0 && len(vec) > 0 {
		f.dim = len(vec)
	}
	if err := checkDim(f.dim, vec); err != nil {
		return err
	}
	f.vectors[id] = Normalize(vec)
	return nil
}

func (f *FlatIndex) Remove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.vectors, id)
	return nil
}

// Search returns the k entries most similar to vec, best first. Equal scores
// are ordered by id.
func (f *FlatIndex) Search(_ context.Context, vec []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.vectors) == 0 {
		return nil, nil
	}
	if err := checkDim(f.dim, vec); err != nil {
		return nil, err
	}
	q := Normalize(vec)
	results := make([]Result, 0, len(f.vectors))
	for id, v := range f.vectors {
		results = append(results, Result{ID: id, Score: dot(q, v)})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Rebuild normalizes the new set without holding the lock and then swaps it
// in, so readers are blocked only for the pointer swap.
func (f *FlatIndex) Rebuild(_ context.Context, vectors map[string][]float32) error {
	f.mu.RLock()
	dim := f.dim
	f.mu.RUnlock()

	next := make(map[string][]float32, len(vectors))
	for id, v := range vectors {
		if dim == 0 && len(v) > 0 {
			dim = len(v)
		}
		if err := checkDim(dim, v); err != nil {
			return err
		}
		next[id] = Normalize(v)
	}

	f.mu.Lock()
	f.vectors = next
	f.dim = dim
	f.mu.Unlock()
	return nil
}

func (f *FlatIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}
