package brain

import (
	"sync"
	"sync/atomic"

	"github.com/iammorganparry/clive/apps/brain/internal/models"
	"github.com/iammorganparry/clive/apps/brain/internal/similarity"
)

// entry is one active knowledge entry held in memory. rec is replaced, never
// mutated, under the write lock. Usage counters change under the read lock
// and are therefore atomic.
type entry struct {
	rec      *models.KnowledgeEntry
	features *similarity.Features

	usage    atomic.Int64
	success  atomic.Int64
	lastUsed atomicTime
}

func (b *Brain) newEntry(rec *models.KnowledgeEntry) *entry {
	r := rec.Clone()
	r.Embedding = nil
	e := &entry{rec: r, features: b.engine.PrepareStored(r.Question, r.Keywords)}
	e.usage.Store(int64(r.UsageCount))
	e.success.Store(int64(r.SuccessCount))
	if r.LastUsedAt != nil {
		e.lastUsed.Store(*r.LastUsedAt)
	}
	return e
}

// replace builds the successor of e for an updated record, carrying over the
// live usage counters.
func (b *Brain) replace(e *entry, rec *models.KnowledgeEntry) *entry {
	next := b.newEntry(rec)
	next.usage.Store(e.usage.Load())
	next.success.Store(e.success.Load())
	if t := e.lastUsed.Load(); t != nil {
		next.lastUsed.Store(*t)
	}
	return next
}

func (e *entry) snapshot() *models.KnowledgeEntry {
	r := e.rec.Clone()
	r.UsageCount = int(e.usage.Load())
	r.SuccessCount = int(e.success.Load())
	r.LastUsedAt = e.lastUsed.Load()
	return r
}

func (e *entry) candidate() similarity.Candidate {
	return similarity.Candidate{
		ID:         e.rec.ID,
		Question:   e.rec.Question,
		UsageCount: int(e.usage.Load()),
		Features:   e.features,
	}
}

// mirror indexes active entries by id and by normalized hash.
type mirror struct {
	byID   map[string]*entry
	byHash map[string]string
}

func newMirror() *mirror {
	return &mirror{byID: make(map[string]*entry), byHash: make(map[string]string)}
}

func (m *mirror) put(e *entry) {
	if old, ok := m.byID[e.rec.ID]; ok && old.rec.NormalizedHash != e.rec.NormalizedHash {
		delete(m.byHash, old.rec.NormalizedHash)
	}
	m.byID[e.rec.ID] = e
	m.byHash[e.rec.NormalizedHash] = e.rec.ID
}

func (m *mirror) remove(id string) *entry {
	e, ok := m.byID[id]
	if !ok {
		return nil
	}
	delete(m.byID, id)
	if m.byHash[e.rec.NormalizedHash] == id {
		delete(m.byHash, e.rec.NormalizedHash)
	}
	return e
}

func (m *mirror) len() int {
	return len(m.byID)
}

func (m *mirror) candidates() []similarity.Candidate {
	out := make([]similarity.Candidate, 0, len(m.byID))
	for _, e := range m.byID {
		out = append(out, e.candidate())
	}
	return out
}

// maxKeysPerEntry bounds how many cache keys are remembered per entry. Past
// it, invalidating the entry clears the whole cache.
const maxKeysPerEntry = 256

// keyTracker remembers which cache keys hold answers from which entry, so an
// update or forget can invalidate paraphrased queries too.
type keyTracker struct {
	mu       sync.Mutex
	keys     map[string]map[string]struct{}
	overflow map[string]bool
}

func newKeyTracker() *keyTracker {
	return &keyTracker{keys: make(map[string]map[string]struct{}), overflow: make(map[string]bool)}
}

func (k *keyTracker) add(entryID, key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	set, ok := k.keys[entryID]
	if !ok {
		set = make(map[string]struct{})
		k.keys[entryID] = set
	}
	if len(set) >= maxKeysPerEntry {
		k.overflow[entryID] = true
		return
	}
	set[key] = struct{}{}
}

// take returns and forgets the keys of entryID. all is true when some keys
// were not recorded.
func (k *keyTracker) take(entryID string) (keys []string, all bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for key := range k.keys[entryID] {
		keys = append(keys, key)
	}
	all = k.overflow[entryID]
	delete(k.keys, entryID)
	delete(k.overflow, entryID)
	return keys, all
}

func (k *keyTracker) reset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys = make(map[string]map[string]struct{})
	k.overflow = make(map[string]bool)
}
