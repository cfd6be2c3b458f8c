// Package similarity scores how alike two questions are using a weighted
// blend of exact, edit-distance, token, keyword and length metrics.
//
// The engine performs no I/O and holds no mutable state, so one Engine can be
// shared by any number of goroutines.
package similarity

import (
	"fmt"
	"sort"

	"github.com/iammorganparry/clive/apps/brain/internal/textnorm"
)

// DefaultKeywordMax is how many keywords per question feed the keyword metric.
const DefaultKeywordMax = 5

// Breakdown holds each metric's individual score.
type Breakdown map[Metric]float64

// Features is the precomputed form of a question. Building it once per
// knowledge entry keeps a lexical scan from re-normalizing every candidate.
type Features struct {
	Hash     string
	Text     []rune
	Tokens   map[string]struct{}
	Keywords map[string]struct{}
}

// Engine computes similarity scores.
type Engine struct {
	norm       *textnorm.Normalizer
	weights    Weights
	keywordMax int
}

// New returns an Engine using the given weights.
func New(norm *textnorm.Normalizer, weights Weights, keywordMax int) (*Engine, error) {
	if norm == nil {
		return nil, fmt.Errorf("similarity engine requires a normalizer")
	}
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("validate weights: %w", err)
	}
	if keywordMax < 1 {
		keywordMax = DefaultKeywordMax
	}
	return &Engine{norm: norm, weights: weights, keywordMax: keywordMax}, nil
}

// Weights returns the weights the engine was built with.
func (e *Engine) Weights() Weights {
	return e.weights
}

// Prepare extracts the features of text used by Compare.
func (e *Engine) Prepare(text string) *Features {
	normalized := e.norm.Normalize(text)
	kw := make(map[string]struct{}, e.keywordMax)
	for _, k := range e.norm.Keywords(normalized, e.keywordMax) {
		kw[k] = struct{}{}
	}
	return &Features{
		Hash:     e.norm.ContentHash(normalized),
		Text:     []rune(normalized),
		Tokens:   e.norm.TokenSet(normalized),
		Keywords: kw,
	}
}

// PrepareStored is Prepare for a knowledge entry whose keywords were derived
// from its question and answer when it was learned. Those keywords replace
// the question-only set; an empty list keeps the question's own keywords.
func (e *Engine) PrepareStored(question string, keywords []string) *Features {
	f := e.Prepare(question)
	if len(keywords) == 0 {
		return f
	}
	kw := make(map[string]struct{}, min(len(keywords), e.keywordMax))
	for _, k := range keywords {
		if len(kw) == e.keywordMax {
			break
		}
		kw[k] = struct{}{}
	}
	f.Keywords = kw
	return f
}

// Score compares two raw strings and returns the combined score in [0,1]
// with its per-metric breakdown.
func (e *Engine) Score(a, b string) (float64, Breakdown) {
	return e.Compare(e.Prepare(a), e.Prepare(b))
}

// Compare scores two prepared questions. The combined score is the
// weighted average of the breakdown, except that an exact match always
// scores 1. For identical questions too short to yield tokens or keywords
// the breakdown therefore averages below the combined score.
func (e *Engine) Compare(a, b *Features) (float64, Breakdown) {
	bd := Breakdown{
		MetricExact:          exact(a, b),
		MetricPartial:        partialRatio(a.Text, b.Text),
		MetricWordOverlap:    jaccard(a.Tokens, b.Tokens),
		MetricKeywordOverlap: overlap(a.Keywords, b.Keywords),
		MetricLengthRatio:    lengthRatio(len(a.Text), len(b.Text)),
	}

	var total float64
	for _, m := range Metrics {
		total += bd[m] * e.weights.Of(m)
	}
	combined := total / e.weights.Sum()
	if combined > 1 || bd[MetricExact] == 1 {
		combined = 1
	}
	return combined, bd
}

func exact(a, b *Features) float64 {
	if a.Hash == b.Hash {
		return 1
	}
	return 0
}

// partialRatio is 2*LCS/(len(a)+len(b)) over runes, the same ratio a
// sequence matcher reports for strings with a single matching block.
func partialRatio(a, b []rune) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return 2 * float64(lcsLength(a, b)) / float64(len(a)+len(b))
}

// lcsLength computes the longest common subsequence with two rolling rows.
func lcsLength(a, b []rune) int {
	if len(b) > len(a) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := intersection(a, b)
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return float64(intersection(a, b)) / float64(max(len(a), len(b)))
}

func intersection(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func lengthRatio(a, b int) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	return float64(min(a, b)) / float64(max(a, b))
}

// Candidate is a knowledge entry offered for matching.
type Candidate struct {
	ID         string
	Question   string
	UsageCount int
	// Features may be nil, in which case the question is prepared on demand.
	Features *Features
}

// Match is a candidate that cleared the threshold.
type Match struct {
	Candidate
	Score     float64
	Breakdown Breakdown
}

// FindBestMatch scores query against every candidate and returns those at
// or above threshold, best first. Ties prefer higher usage, then the
// lexicographically smaller id, so the ordering is fully deterministic.
func (e *Engine) FindBestMatch(query string, candidates []Candidate, threshold float64) []Match {
	q := e.Prepare(query)
	var matches []Match
	for _, c := range candidates {
		f := c.Features
		if f == nil {
			f = e.Prepare(c.Question)
		}
		score, bd := e.Compare(q, f)
		if score < threshold {
			continue
		}
		matches = append(matches, Match{Candidate: c, Score: score, Breakdown: bd})
	}
	SortMatches(matches)
	return matches
}

// SortMatches orders matches by score, usage and id.
func SortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.UsageCount != b.UsageCount {
			return a.UsageCount > b.UsageCount
		}
		return a.ID < b.ID
	})
}
