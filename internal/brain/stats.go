package brain

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/iammorganparry/clive/apps/brain/internal/cache"
	"github.com/iammorganparry/clive/apps/brain/internal/models"
)

// responseDecay weights the previous average in the response time EWMA.
const responseDecay = 0.9

type stats struct {
	queries     atomic.Int64
	cacheHits   atomic.Int64
	vectorHits  atomic.Int64
	lexicalHits atomic.Int64
	misses      atomic.Int64

	mu    sync.Mutex
	avgMs float64
}

func (s *stats) observe(mt models.MatchType, d time.Duration) {
	n := s.queries.Add(1)
	switch mt {
	case models.MatchCache:
		s.cacheHits.Add(1)
	case models.MatchVector:
		s.vectorHits.Add(1)
	case models.MatchLexical:
		s.lexicalHits.Add(1)
	default:
		s.misses.Add(1)
	}

	ms := float64(d) / float64(time.Millisecond)
	s.mu.Lock()
	if n == 1 {
		s.avgMs = ms
	} else {
		s.avgMs = responseDecay*s.avgMs + (1-responseDecay)*ms
	}
	s.mu.Unlock()
}

// Stats returns query counters and sizes.
func (b *Brain) Stats() models.Stats {
	b.stats.mu.Lock()
	avg := b.stats.avgMs
	b.stats.mu.Unlock()

	st := models.Stats{
		TotalQueries:     b.stats.queries.Load(),
		CacheHits:        b.stats.cacheHits.Load(),
		VectorHits:       b.stats.vectorHits.Load(),
		LexicalHits:      b.stats.lexicalHits.Load(),
		Misses:           b.stats.misses.Load(),
		KnowledgeSize:    b.Size(),
		AvgResponseMs:    avg,
		EmbeddingEnabled: b.vectorEnabled(),
	}
	if s, ok := b.cache.(cache.Sizer); ok {
		st.CacheSize = s.Len()
	}
	if b.index != nil {
		st.VectorIndexSize = b.index.Len()
	}
	return st
}
