package models

// KnowledgeEntry is one learned question/answer pair as persisted by the store.
type KnowledgeEntry struct {
	ID             string     `json:"id"`
	Question       string     `json:"question"`
	Answer         string     `json:"answer"`
	NormalizedHash string     `json:"normalizedHash"`
	Keywords       []string   `json:"keywords"`
	Embedding      []byte     `json:"-"`
	EmbeddingModel string     `json:"-"`
	Confidence     Confidence `json:"confidence"`
	UsageCount     int        `json:"usageCount"`
	SuccessCount   int        `json:"successCount"`
	Version        int        `json:"version"`
	Category       string     `json:"category"`
	Source         string     `json:"source"`
	Language       string     `json:"language"`
	Active         bool       `json:"active"`
	CreatedAt      int64      `json:"createdAt"`
	UpdatedAt      int64      `json:"updatedAt"`
	LastUsedAt     *int64     `json:"lastUsedAt,omitempty"`
}

// Clone returns a copy that shares no slices with e.
func (e *KnowledgeEntry) Clone() *KnowledgeEntry {
	c := *e
	if e.Keywords != nil {
		c.Keywords = append([]string(nil), e.Keywords...)
	}
	if e.Embedding != nil {
		c.Embedding = append([]byte(nil), e.Embedding...)
	}
	if e.LastUsedAt != nil {
		t := *e.LastUsedAt
		c.LastUsedAt = &t
	}
	return &c
}

// EmbeddingCacheEntry stores a cached embedding keyed by content hash.
type EmbeddingCacheEntry struct {
	ContentHash string `json:"contentHash"`
	Embedding   []byte `json:"embedding"`
	Dimension   int    `json:"dimension"`
	Model       string `json:"model"`
	UpdatedAt   int64  `json:"updatedAt"`
}

// IngestRecord is the audit row written for every document ingestion.
type IngestRecord struct {
	ID         int64        `json:"id"`
	Source     string       `json:"source"`
	Extracted  int          `json:"extracted"`
	Learned    int          `json:"learned"`
	Failed     int          `json:"failed"`
	Status     IngestStatus `json:"status"`
	DurationMs int64        `json:"durationMs"`
	CreatedAt  int64        `json:"createdAt"`
}

// DefaultCategory is applied when learn is called without a category.
const DefaultCategory = "general"

// SourceManual marks entries taught directly through learn.
const SourceManual = "manual"
