package vectorindex

import (
	"context"
	"fmt"
	"sync"
)

const upsertBatchSize = 256

// QdrantIndex is an Index backed by a single Qdrant collection. It tracks
// the ids it has written so Len needs no round trip.
type QdrantIndex struct {
	client     *QdrantClient
	collection string
	dim        int

	mu      sync.RWMutex
	ensured bool
	ids     map[string]struct{}
}

func NewQdrantIndex(client *QdrantClient, collection string) *QdrantIndex {
	return &QdrantIndex{
		client:     client,
		collection: collection,
		dim:        client.dimension,
		ids:        make(map[string]struct{}),
	}
}

// ensure creates the collection on first use. The result is cached.
func (q *QdrantIndex) ensure(ctx context.Context) error {
	q.mu.RLock()
	if q.ensured {
		q.mu.RUnlock()
		return nil
	}
	q.mu.RUnlock()

	q.mu.Lock()
	defer q.mu.Unlock()

	// Double-check after acquiring write lock
	if q.ensured {
		return nil
	}
	if err := q.client.EnsureCollection(ctx, q.collection); err != nil {
		return fmt.Errorf("ensure collection %s: %w", q.collection, err)
	}
	q.ensured = true
	return nil
}

func (q *QdrantIndex) Add(ctx context.Context, id string, vec []float32) error {
	if err := checkDim(q.dim, vec); err != nil {
		return err
	}
	if err := q.ensure(ctx); err != nil {
		return err
	}
	if err := q.client.Upsert(ctx, q.collection, []Point{{ID: id, Vector: vec}}); err != nil {
		return fmt.Errorf("upsert point %s: %w", id, err)
	}
	q.mu.Lock()
	q.ids[id] = struct{}{}
	q.mu.Unlock()
	return nil
}

func (q *QdrantIndex) Remove(ctx context.Context, id string) error {
	if err := q.ensure(ctx); err != nil {
		return err
	}
	if err := q.client.DeletePoints(ctx, q.collection, []string{id}); err != nil {
		return fmt.Errorf("delete point %s: %w", id, err)
	}
	q.mu.Lock()
	delete(q.ids, id)
	q.mu.Unlock()
	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, vec []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}
	if err := checkDim(q.dim, vec); err != nil {
		return nil, err
	}
	if err := q.ensure(ctx); err != nil {
		return nil, err
	}
	return q.client.Search(ctx, q.collection, vec, k)
}

// Rebuild drops and recreates the collection, then upserts in batches.
func (q *QdrantIndex) Rebuild(ctx context.Context, vectors map[string][]float32) error {
	points := make([]Point, 0, len(vectors))
	for id, v := range vectors {
		if err := checkDim(q.dim, v); err != nil {
			return err
		}
		points = append(points, Point{ID: id, Vector: v})
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
		return err
	}
	q.ensured = false
	if err := q.client.EnsureCollection(ctx, q.collection); err != nil {
		return fmt.Errorf("recreate collection %s: %w", q.collection, err)
	}
	q.ensured = true

	ids := make(map[string]struct{}, len(points))
	for start := 0; start < len(points); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(points))
		if err := q.client.Upsert(ctx, q.collection, points[start:end]); err != nil {
			return fmt.Errorf("upsert batch: %w", err)
		}
		for _, p := range points[start:end] {
			ids[p.ID] = struct{}{}
		}
	}
	q.ids = ids
	return nil
}

func (q *QdrantIndex) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.ids)
}

// HealthCheck proxies the client health check.
func (q *QdrantIndex) HealthCheck(ctx context.Context) error {
	return q.client.HealthCheck(ctx)
}
