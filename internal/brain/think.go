package brain

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/iammorganparry/clive/apps/brain/internal/metrics"
	"github.com/iammorganparry/clive/apps/brain/internal/models"
	"github.com/iammorganparry/clive/apps/brain/internal/similarity"
	"github.com/iammorganparry/clive/apps/brain/internal/vectorindex"
)

// Think answers question. The only error it returns is a validation error;
// every backend failure degrades to the next tier of the cascade.
func (b *Brain) Think(ctx context.Context, question string) (models.QueryResult, error) {
	start := b.now()
	if err := b.requireText("question", question); err != nil {
		return models.QueryResult{}, err
	}
	key := b.norm.ContentHash(question)

	if res, ok := b.cache.Get(ctx, key); ok {
		res = cloneResult(res)
		res.MatchType = models.MatchCache
		b.finish(res.MatchType, start)
		return res, nil
	}

	// Identical concurrent misses share one lookup.
	v, _, _ := b.flight.Do(key, func() (any, error) {
		return b.lookup(ctx, question, key), nil
	})
	res := cloneResult(v.(models.QueryResult))

	if res.MatchType != models.MatchNone {
		b.recordUsage(res.MatchedEntryID, res.Confidence >= b.cfg.CaveatThreshold)
	}
	b.finish(res.MatchType, start)
	return res, nil
}

// lookup runs the vector and lexical tiers. The read lock is held from the
// first mirror read until the answer is cached, so a concurrent Learn cannot
// slip an invalidation in between.
func (b *Brain) lookup(ctx context.Context, question, key string) models.QueryResult {
	var qvec []float32
	if b.vectorEnabled() && b.index.Len() > 0 {
		vec, err := b.embedder.Embed(ctx, question)
		if err != nil {
			b.logEmbedError("embed question", err)
		} else {
			qvec = vec
		}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	res, ok := b.vectorMatch(ctx, qvec)
	if !ok {
		res, ok = b.lexicalMatch(question)
	}
	if !ok {
		return unknownResult()
	}
	b.cache.Set(ctx, key, res, b.cfg.CacheTTL)
	b.keys.add(res.MatchedEntryID, key)
	return res
}

// vectorMatch must be called with b.mu held.
func (b *Brain) vectorMatch(ctx context.Context, qvec []float32) (models.QueryResult, bool) {
	if qvec == nil {
		return models.QueryResult{}, false
	}
	hits, err := b.index.Search(ctx, qvec, b.cfg.VectorCandidates)
	if err != nil {
		if errors.Is(err, vectorindex.ErrDimensionMismatch) {
			b.logger.Error("vector search", "error", err)
		} else {
			b.logger.Warn("vector search", "error", err)
		}
		b.metrics.ObserveError(metrics.ErrVector)
		return models.QueryResult{}, false
	}

	var best *entry
	var bestScore float64
	var alts []models.Alternative
	for _, h := range hits {
		e, ok := b.mirror.byID[h.ID]
		if !ok {
			continue
		}
		score := clamp01(h.Score)
		if best == nil {
			if score < b.cfg.SimilarityThreshold {
				break
			}
			best, bestScore = e, score
			continue
		}
		if len(alts) < b.cfg.MaxAlternatives && score > b.cfg.AlternativeMinScore {
			alts = append(alts, models.Alternative{EntryID: e.rec.ID, Question: e.rec.Question, Score: score})
		}
	}
	if best == nil {
		return models.QueryResult{}, false
	}
	res := b.answer(best, bestScore, models.MatchVector)
	res.Alternatives = alts
	res.Breakdown = map[string]float64{"cosine": bestScore}
	return res, true
}

// lexicalMatch must be called with b.mu held.
func (b *Brain) lexicalMatch(question string) (models.QueryResult, bool) {
	if b.mirror.len() == 0 {
		return models.QueryResult{}, false
	}
	floor := min(b.cfg.SimilarityThreshold, b.cfg.AlternativeMinScore)
	matches := b.engine.FindBestMatch(question, b.mirror.candidates(), floor)
	if len(matches) == 0 || matches[0].Score < b.cfg.SimilarityThreshold {
		return models.QueryResult{}, false
	}

	top := matches[0]
	res := b.answer(b.mirror.byID[top.ID], top.Score, models.MatchLexical)
	res.Breakdown = breakdownMap(top.Breakdown)
	for _, m := range matches[1:] {
		if len(res.Alternatives) >= b.cfg.MaxAlternatives {
			break
		}
		if m.Score > b.cfg.AlternativeMinScore {
			res.Alternatives = append(res.Alternatives, models.Alternative{EntryID: m.ID, Question: m.Question, Score: m.Score})
		}
	}
	return res, true
}

func (b *Brain) answer(e *entry, score float64, mt models.MatchType) models.QueryResult {
	return models.QueryResult{
		Answer:          e.rec.Answer,
		Confidence:      score,
		MatchType:       mt,
		MatchedEntryID:  e.rec.ID,
		MatchedQuestion: e.rec.Question,
		Uncertain:       score < b.cfg.CaveatThreshold,
	}
}

func unknownResult() models.QueryResult {
	return models.QueryResult{Answer: UnknownAnswer, MatchType: models.MatchNone}
}

// recordUsage bumps the live counters and then the durable ones. A store
// failure only costs the increment.
func (b *Brain) recordUsage(id string, confident bool) {
	now := b.now().Unix()
	b.mu.RLock()
	if e, ok := b.mirror.byID[id]; ok {
		e.usage.Add(1)
		if confident {
			e.success.Add(1)
		}
		e.lastUsed.Store(now)
	}
	b.mu.RUnlock()

	if err := b.store.RecordUsage(id, confident, now); err != nil {
		b.logger.Warn("record usage", "entry_id", id, "error", err)
		b.metrics.ObserveError(metrics.ErrStore)
	}
}

func (b *Brain) finish(mt models.MatchType, start time.Time) {
	d := b.now().Sub(start)
	b.stats.observe(mt, d)
	b.metrics.ObserveQuery(string(mt), d)
}

// requireText rejects text that normalizes to nothing but punctuation.
func (b *Brain) requireText(field, text string) error {
	if strings.IndexFunc(b.norm.Normalize(text), isWordRune) < 0 {
		return &models.ValidationError{Field: field, Reason: "must contain text"}
	}
	return nil
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func cloneResult(r models.QueryResult) models.QueryResult {
	if r.Alternatives != nil {
		r.Alternatives = append([]models.Alternative(nil), r.Alternatives...)
	}
	if r.Breakdown != nil {
		bd := make(map[string]float64, len(r.Breakdown))
		for k, v := range r.Breakdown {
			bd[k] = v
		}
		r.Breakdown = bd
	}
	return r
}

func breakdownMap(bd similarity.Breakdown) map[string]float64 {
	out := make(map[string]float64, len(bd))
	for m, v := range bd {
		out[string(m)] = v
	}
	return out
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
