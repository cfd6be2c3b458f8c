// Package brain answers questions from learned knowledge. A query cascades
// through the answer cache, the vector index and a lexical scan of the
// in-memory mirror before giving up with a fixed "don't know" answer.
package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iammorganparry/clive/apps/brain/internal/cache"
	"github.com/iammorganparry/clive/apps/brain/internal/embedding"
	"github.com/iammorganparry/clive/apps/brain/internal/ingest"
	"github.com/iammorganparry/clive/apps/brain/internal/metrics"
	"github.com/iammorganparry/clive/apps/brain/internal/models"
	"github.com/iammorganparry/clive/apps/brain/internal/similarity"
	"github.com/iammorganparry/clive/apps/brain/internal/store"
	"github.com/iammorganparry/clive/apps/brain/internal/textnorm"
	"github.com/iammorganparry/clive/apps/brain/internal/vectorindex"
)

// UnknownAnswer is returned when no entry matches a question.
const UnknownAnswer = "I don't know the answer to that yet."

// KnowledgeStore is the durable store the mirror is built from.
type KnowledgeStore interface {
	Insert(e *models.KnowledgeEntry) error
	Update(e *models.KnowledgeEntry) error
	SetEmbedding(id string, embedding []byte, model string) error
	GetByID(id string) (*models.KnowledgeEntry, error)
	FindActiveByHash(hash string) (*models.KnowledgeEntry, error)
	Deactivate(id string) (bool, error)
	ListActive(order store.ListOrder, limit int) ([]*models.KnowledgeEntry, error)
	RecordUsage(id string, confident bool, at int64) error
	ResetUsage(id string) error
}

// IngestLog receives one record per ingestDocument call.
type IngestLog interface {
	Record(r *models.IngestRecord) error
}

// Config holds the tunables of the lookup cascade.
type Config struct {
	// SimilarityThreshold is the minimum score accepted from the vector and
	// lexical paths.
	SimilarityThreshold float64
	// CaveatThreshold marks answers below it as uncertain.
	CaveatThreshold float64
	CacheTTL        time.Duration
	// MaxAlternatives runner-up matches scoring above AlternativeMinScore
	// are attached to each answer.
	MaxAlternatives     int
	AlternativeMinScore float64
	KeywordMax          int
	// VectorCandidates is k for vector searches.
	VectorCandidates int
	EmbedConcurrency int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.6,
		CaveatThreshold:     0.8,
		CacheTTL:            5 * time.Minute,
		MaxAlternatives:     2,
		AlternativeMinScore: 0.5,
		KeywordMax:          similarity.DefaultKeywordMax,
		VectorCandidates:    5,
		EmbedConcurrency:    embedding.DefaultBatchConcurrency,
	}
}

func (c Config) validate() error {
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold %v outside [0,1]", c.SimilarityThreshold)
	}
	if c.CaveatThreshold < 0 || c.CaveatThreshold > 1 {
		return fmt.Errorf("caveat threshold %v outside [0,1]", c.CaveatThreshold)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}
	return nil
}

// Deps are the collaborators of a Brain. Index and Embedder are optional;
// without both the vector path is skipped. IngestLog and Metrics are
// optional too.
type Deps struct {
	Store      KnowledgeStore
	IngestLog  IngestLog
	Cache      cache.Tier
	Index      vectorindex.Index
	Embedder   embedding.Embedder
	Normalizer *textnorm.Normalizer
	Engine     *similarity.Engine
	Extractor  *ingest.Extractor
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Brain owns the in-memory knowledge mirror. Think calls share a read lock;
// Learn, Forget and Load take the write lock around the store write, the
// mirror and index update and the cache invalidation.
type Brain struct {
	mu     sync.RWMutex
	mirror *mirror

	store     KnowledgeStore
	ingestLog IngestLog
	cache     cache.Tier
	index     vectorindex.Index
	embedder  embedding.Embedder
	norm      *textnorm.Normalizer
	engine    *similarity.Engine
	extractor *ingest.Extractor
	metrics   *metrics.Metrics
	logger    *slog.Logger
	cfg       Config

	flight singleflight.Group
	keys   *keyTracker
	stats  stats
	now    func() time.Time
}

// New wires a Brain. Call Load before serving to populate the mirror.
func New(deps Deps, cfg Config) (*Brain, error) {
	if deps.Store == nil {
		return nil, errors.New("brain requires a knowledge store")
	}
	if deps.Cache == nil {
		return nil, errors.New("brain requires a cache tier")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate brain config: %w", err)
	}
	d := DefaultConfig()
	if cfg.KeywordMax < 1 {
		cfg.KeywordMax = d.KeywordMax
	}
	if cfg.VectorCandidates < 1 {
		cfg.VectorCandidates = d.VectorCandidates
	}
	if cfg.EmbedConcurrency < 1 {
		cfg.EmbedConcurrency = d.EmbedConcurrency
	}
	if cfg.MaxAlternatives < 0 {
		cfg.MaxAlternatives = 0
	}

	norm := deps.Normalizer
	if norm == nil {
		norm = textnorm.NewDefault()
	}
	engine := deps.Engine
	if engine == nil {
		var err error
		engine, err = similarity.New(norm, similarity.DefaultWeights(), cfg.KeywordMax)
		if err != nil {
			return nil, fmt.Errorf("create similarity engine: %w", err)
		}
	}
	extractor := deps.Extractor
	if extractor == nil {
		extractor = ingest.NewExtractor(norm, ingest.DefaultOptions())
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	b := &Brain{
		mirror:    newMirror(),
		store:     deps.Store,
		ingestLog: deps.IngestLog,
		cache:     deps.Cache,
		index:     deps.Index,
		embedder:  deps.Embedder,
		norm:      norm,
		engine:    engine,
		extractor: extractor,
		metrics:   deps.Metrics,
		logger:    logger,
		cfg:       cfg,
		keys:      newKeyTracker(),
		now:       time.Now,
	}
	return b, nil
}

// Load rebuilds the mirror and the vector index from the store. Questions
// without a stored embedding for the current model are embedded in batches
// before any lock is taken; the swap itself runs under the write lock.
func (b *Brain) Load(ctx context.Context) error {
	start := b.now()
	entries, err := b.store.ListActive(store.OrderByUsage, 0)
	if err != nil {
		b.metrics.ObserveError(metrics.ErrStore)
		return fmt.Errorf("list active knowledge: %w", err)
	}

	next := newMirror()
	for _, e := range entries {
		next.put(b.newEntry(e))
	}

	vectors := b.loadVectors(ctx, entries)

	b.mu.Lock()
	b.mirror = next
	if b.index != nil && vectors != nil {
		if err := b.index.Rebuild(ctx, vectors); err != nil {
			b.logger.Error("rebuild vector index", "error", err)
			b.metrics.ObserveError(metrics.ErrVector)
		}
	}
	b.keys.reset()
	b.cache.Clear(ctx)
	size := next.len()
	b.mu.Unlock()

	b.metrics.SetKnowledgeSize(size)
	b.logger.Info("knowledge loaded",
		"entries", size,
		"vectors", len(vectors),
		"duration_ms", b.now().Sub(start).Milliseconds(),
	)
	return nil
}

// loadVectors decodes stored embeddings and computes the missing ones. It
// returns nil when the vector path is disabled.
func (b *Brain) loadVectors(ctx context.Context, entries []*models.KnowledgeEntry) map[string][]float32 {
	if b.index == nil || b.embedder == nil {
		return nil
	}
	model := b.embedder.Model()
	vectors := make(map[string][]float32, len(entries))
	var missing []*models.KnowledgeEntry
	for _, e := range entries {
		if len(e.Embedding) > 0 && e.EmbeddingModel == model {
			if vec, err := vectorindex.DecodeVector(e.Embedding); err == nil {
				vectors[e.ID] = vec
				continue
			}
			b.logger.Warn("re-embedding entry with unreadable vector", "entry_id", e.ID)
		}
		missing = append(missing, e)
	}
	if len(missing) == 0 {
		return vectors
	}

	texts := make([]string, len(missing))
	for i, e := range missing {
		texts[i] = e.Question
	}
	vecs, err := embedding.EmbedBatch(ctx, b.embedder, texts, b.cfg.EmbedConcurrency)
	if err != nil {
		b.logEmbedError("embed knowledge on load", err)
		return vectors
	}
	for i, e := range missing {
		vectors[e.ID] = vecs[i]
		if err := b.store.SetEmbedding(e.ID, vectorindex.EncodeVector(vecs[i]), model); err != nil {
			b.logger.Warn("persist embedding", "entry_id", e.ID, "error", err)
		}
	}
	return vectors
}

// logEmbedError separates an unavailable backend, which is expected, from
// everything else.
func (b *Brain) logEmbedError(msg string, err error) {
	if errors.Is(err, embedding.ErrUnavailable) {
		b.logger.Warn(msg, "error", err)
		return
	}
	b.logger.Error(msg, "error", err)
	b.metrics.ObserveError(metrics.ErrEmbedding)
}

func (b *Brain) vectorEnabled() bool {
	return b.index != nil && b.embedder != nil
}

// Entry returns an entry by id. Active entries come from the mirror and
// include live usage counters; forgotten ones are read from the store.
func (b *Brain) Entry(id string) (*models.KnowledgeEntry, error) {
	b.mu.RLock()
	e, ok := b.mirror.byID[id]
	var snap *models.KnowledgeEntry
	if ok {
		snap = e.snapshot()
	}
	b.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	rec, err := b.store.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get knowledge %s: %w", id, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("knowledge %s: %w", id, models.ErrNotFound)
	}
	rec.Embedding = nil
	return rec, nil
}

// Size reports how many active entries the mirror holds.
func (b *Brain) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mirror.len()
}

// Sweep drops expired answers from the cache if the tier supports it.
func (b *Brain) Sweep() int {
	n := 0
	if s, ok := b.cache.(cache.Sweeper); ok {
		n = s.Sweep()
	}
	if s, ok := b.cache.(cache.Sizer); ok {
		b.metrics.SetCacheSize(s.Len())
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done. A non-positive
// interval disables sweeping.
func (b *Brain) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := b.Sweep(); n > 0 {
				b.logger.Debug("swept expired answers", "count", n)
			}
		}
	}
}

// atomicTime stores a unix timestamp, zero meaning never.
type atomicTime struct{ v atomic.Int64 }

func (t *atomicTime) Store(unix int64) { t.v.Store(unix) }

func (t *atomicTime) Load() *int64 {
	v := t.v.Load()
	if v == 0 {
		return nil
	}
	return &v
}
