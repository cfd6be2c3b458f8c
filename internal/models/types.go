package models

// MatchType records which lookup tier produced a think result.
type MatchType string

const (
	MatchCache   MatchType = "cache"
	MatchVector  MatchType = "vector"
	MatchLexical MatchType = "lexical"
	MatchNone    MatchType = "none"
)

var ValidMatchTypes = map[MatchType]bool{
	MatchCache:   true,
	MatchVector:  true,
	MatchLexical: true,
	MatchNone:    true,
}

func (t MatchType) IsValid() bool {
	return ValidMatchTypes[t]
}

// IngestStatus summarises how an ingestion run went.
type IngestStatus string

const (
	IngestSuccess IngestStatus = "success"
	IngestPartial IngestStatus = "partial"
	IngestFailed  IngestStatus = "failed"
)

// QueryResult is the ephemeral answer returned by think.
type QueryResult struct {
	Answer          string             `json:"answer"`
	Confidence      float64            `json:"confidence"`
	MatchType       MatchType          `json:"matchType"`
	MatchedEntryID  string             `json:"matchedEntryId,omitempty"`
	MatchedQuestion string             `json:"matchedQuestion,omitempty"`
	Uncertain       bool               `json:"uncertain"`
	Alternatives    []Alternative      `json:"alternatives,omitempty"`
	Breakdown       map[string]float64 `json:"breakdown,omitempty"`
}

// Alternative is a runner-up match offered as a suggestion.
type Alternative struct {
	EntryID  string  `json:"entryId"`
	Question string  `json:"question"`
	Score    float64 `json:"score"`
}

// ThinkRequest is the payload for POST /think.
type ThinkRequest struct {
	Question string `json:"question"`
}

// LearnRequest is the payload for POST /learn.
type LearnRequest struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Confidence *float64 `json:"confidence,omitempty"`
	Category   string   `json:"category"`
	Source     string   `json:"-"`
}

// LearnResponse is returned from learn.
type LearnResponse struct {
	ID      string `json:"id"`
	Created bool   `json:"created"`
	Version int    `json:"version"`
}

// IngestRequest is the payload for POST /ingest.
type IngestRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// IngestResponse is returned from ingestDocument.
type IngestResponse struct {
	ExtractedCount int          `json:"extractedCount"`
	LearnedCount   int          `json:"learnedCount"`
	FailedCount    int          `json:"failedCount"`
	Status         IngestStatus `json:"status"`
}

// ForgetResponse is returned from DELETE /knowledge/{id}.
type ForgetResponse struct {
	ID        string `json:"id"`
	Forgotten bool   `json:"forgotten"`
}

// SearchHit is one row from the admin full-text search.
type SearchHit struct {
	Entry *KnowledgeEntry `json:"entry"`
	Score float64         `json:"score"`
}

// Stats is a point-in-time snapshot of brain activity.
type Stats struct {
	TotalQueries     int64   `json:"totalQueries"`
	CacheHits        int64   `json:"cacheHits"`
	VectorHits       int64   `json:"vectorHits"`
	LexicalHits      int64   `json:"lexicalHits"`
	Misses           int64   `json:"misses"`
	KnowledgeSize    int     `json:"knowledgeSize"`
	CacheSize        int     `json:"cacheSize"`
	VectorIndexSize  int     `json:"vectorIndexSize"`
	AvgResponseMs    float64 `json:"avgResponseMs"`
	EmbeddingEnabled bool    `json:"embeddingEnabled"`
}

// HealthResponse is returned from GET /health.
type HealthResponse struct {
	Status         string       `json:"status"`
	DB             ServiceCheck `json:"db"`
	Embedding      ServiceCheck `json:"embedding"`
	VectorIndex    ServiceCheck `json:"vectorIndex"`
	KnowledgeCount int          `json:"knowledgeCount"`
}

type ServiceCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
