package brain

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iammorganparry/clive/apps/brain/internal/metrics"
	"github.com/iammorganparry/clive/apps/brain/internal/models"
	"github.com/iammorganparry/clive/apps/brain/internal/textnorm"
	"github.com/iammorganparry/clive/apps/brain/internal/vectorindex"
)

// Learn stores question and answer. An active entry with the same
// normalized question is updated in place and its version bumped; learning
// an identical pair again changes nothing.
//
// The store is written first. If that fails, the mirror, the index and the
// cache are left untouched and the error is returned.
func (b *Brain) Learn(ctx context.Context, req models.LearnRequest) (models.LearnResponse, error) {
	if err := b.requireText("question", req.Question); err != nil {
		return models.LearnResponse{}, err
	}
	if err := b.requireText("answer", req.Answer); err != nil {
		return models.LearnResponse{}, err
	}
	confidence := models.DefaultConfidence
	if req.Confidence != nil {
		c, err := models.NewConfidence(*req.Confidence)
		if err != nil {
			return models.LearnResponse{}, err
		}
		confidence = c
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = models.DefaultCategory
	}
	source := req.Source
	if source == "" {
		source = models.SourceManual
	}
	question := strings.TrimSpace(req.Question)
	answer := strings.TrimSpace(req.Answer)
	hash := b.norm.ContentHash(question)

	// Embedding may be slow, so it happens before the write lock.
	var vec []float32
	if b.vectorEnabled() {
		v, err := b.embedder.Embed(ctx, question)
		if err != nil {
			b.logEmbedError("embed learned question", err)
		} else {
			vec = v
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	existing, err := b.store.FindActiveByHash(hash)
	if err != nil {
		b.metrics.ObserveError(metrics.ErrStore)
		return models.LearnResponse{}, fmt.Errorf("find existing knowledge: %w", err)
	}

	now := b.now().Unix()
	if existing == nil {
		rec := &models.KnowledgeEntry{
			ID:             uuid.New().String(),
			Question:       question,
			Answer:         answer,
			NormalizedHash: hash,
			Keywords:       b.norm.Keywords(question+" "+answer, b.cfg.KeywordMax),
			Confidence:     confidence,
			Version:        1,
			Category:       category,
			Source:         source,
			Language:       textnorm.DetectLanguage(question + " " + answer),
			Active:         true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if vec != nil {
			rec.Embedding = vectorindex.EncodeVector(vec)
			rec.EmbeddingModel = b.embedder.Model()
		}
		if err := b.store.Insert(rec); err != nil {
			b.metrics.ObserveError(metrics.ErrStore)
			return models.LearnResponse{}, fmt.Errorf("insert knowledge: %w", err)
		}

		b.mirror.put(b.newEntry(rec))
		b.indexAdd(ctx, rec.ID, vec)
		b.invalidate(ctx, rec.ID, hash)
		b.metrics.ObserveLearn(true)
		b.metrics.SetKnowledgeSize(b.mirror.len())
		b.logger.Info("knowledge learned", "entry_id", rec.ID, "category", category, "source", source)
		return models.LearnResponse{ID: rec.ID, Created: true, Version: rec.Version}, nil
	}

	if existing.Answer == answer && existing.Confidence == confidence && existing.Category == category {
		// The store can hold an entry this process has not seen yet.
		if _, ok := b.mirror.byID[existing.ID]; !ok {
			b.mirror.put(b.newEntry(existing))
			b.indexAdd(ctx, existing.ID, vec)
		}
		return models.LearnResponse{ID: existing.ID, Created: false, Version: existing.Version}, nil
	}

	rec := existing.Clone()
	rec.Question = question
	rec.Answer = answer
	rec.Confidence = confidence
	rec.Category = category
	rec.Keywords = b.norm.Keywords(question+" "+answer, b.cfg.KeywordMax)
	rec.Language = textnorm.DetectLanguage(question + " " + answer)
	rec.Version++
	rec.UpdatedAt = now
	if vec != nil {
		rec.Embedding = vectorindex.EncodeVector(vec)
		rec.EmbeddingModel = b.embedder.Model()
	}
	if err := b.store.Update(rec); err != nil {
		b.metrics.ObserveError(metrics.ErrStore)
		return models.LearnResponse{}, fmt.Errorf("update knowledge: %w", err)
	}

	if old, ok := b.mirror.byID[rec.ID]; ok {
		b.mirror.put(b.replace(old, rec))
	} else {
		b.mirror.put(b.newEntry(rec))
	}
	b.indexAdd(ctx, rec.ID, vec)
	b.invalidate(ctx, rec.ID, hash)
	b.metrics.ObserveLearn(false)
	b.logger.Info("knowledge updated", "entry_id", rec.ID, "version", rec.Version)
	return models.LearnResponse{ID: rec.ID, Created: false, Version: rec.Version}, nil
}

// Forget soft-deletes an entry and drops it from the mirror, the index and
// the cache. It reports false for an unknown or already forgotten id.
func (b *Brain) Forget(ctx context.Context, id string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, &models.ValidationError{Field: "id", Reason: "must not be empty"}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ok, err := b.store.Deactivate(id)
	if err != nil {
		b.metrics.ObserveError(metrics.ErrStore)
		return false, fmt.Errorf("forget knowledge: %w", err)
	}

	// Drop a stale mirror copy even if another process forgot it first.
	e := b.mirror.remove(id)
	if e != nil {
		if b.index != nil {
			if err := b.index.Remove(ctx, id); err != nil {
				b.logger.Error("remove from vector index", "entry_id", id, "error", err)
				b.metrics.ObserveError(metrics.ErrVector)
			}
		}
		b.invalidate(ctx, id, e.rec.NormalizedHash)
		b.metrics.SetKnowledgeSize(b.mirror.len())
	}
	if ok {
		b.metrics.ObserveForget()
		b.logger.Info("knowledge forgotten", "entry_id", id)
	}
	return ok, nil
}

// ResetUsage zeroes the usage counters of an entry.
func (b *Brain) ResetUsage(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.store.ResetUsage(id); err != nil {
		return fmt.Errorf("reset usage: %w", err)
	}
	if e, ok := b.mirror.byID[id]; ok {
		e.usage.Store(0)
		e.success.Store(0)
	}
	return nil
}

// indexAdd must be called with the write lock held. Index failures are
// logged; the entry stays reachable through the lexical path.
func (b *Brain) indexAdd(ctx context.Context, id string, vec []float32) {
	if b.index == nil || vec == nil {
		return
	}
	if err := b.index.Add(ctx, id, vec); err != nil {
		b.logger.Error("add to vector index", "entry_id", id, "error", err)
		b.metrics.ObserveError(metrics.ErrVector)
	}
}

// invalidate drops the cached answer for hash and every cached answer that
// came from entry id. Must be called with the write lock held.
func (b *Brain) invalidate(ctx context.Context, id, hash string) {
	keys, all := b.keys.take(id)
	if all {
		b.keys.reset()
		b.cache.Clear(ctx)
		return
	}
	b.cache.Invalidate(ctx, hash)
	for _, k := range keys {
		if k != hash {
			b.cache.Invalidate(ctx, k)
		}
	}
}
