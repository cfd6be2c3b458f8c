// Package ingest mines raw documents for question/answer pairs.
package ingest

import (
	"strings"

	"github.com/iammorganparry/clive/apps/brain/internal/models"
	"github.com/iammorganparry/clive/apps/brain/internal/textnorm"
)

// Mode records which extraction path produced a pair.
type Mode string

const (
	ModeSentence Mode = "sentence"
	ModeMarker   Mode = "marker"
	ModeTabular  Mode = "tabular"
)

const (
	DefaultWindow   = 5
	DefaultMinScore = 30
	DefaultMarker   = "!این"
)

// Options tunes extraction.
type Options struct {
	// Window is how many units after a question are considered as answers.
	Window int `mapstructure:"window"`
	// MinScore is the heuristic score an answer must exceed.
	MinScore float64 `mapstructure:"min_score"`
	// Marker separates question from answer in marker mode.
	Marker string `mapstructure:"marker"`
	// StructuredConfidence is assigned to marker and tabular pairs.
	StructuredConfidence float64 `mapstructure:"structured_confidence"`
}

// DefaultOptions returns the standard extraction settings.
func DefaultOptions() Options {
	return Options{
		Window:               DefaultWindow,
		MinScore:             DefaultMinScore,
		Marker:               DefaultMarker,
		StructuredConfidence: float64(models.MaxConfidence),
	}
}

// withDefaults fills Window and Marker, which have no usable zero value.
// A zero MinScore or StructuredConfidence is a deliberate setting and is
// kept; negative values are clamped to zero.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Window <= 0 {
		o.Window = d.Window
	}
	if o.Marker == "" {
		o.Marker = d.Marker
	}
	o.MinScore = max(o.MinScore, 0)
	o.StructuredConfidence = max(o.StructuredConfidence, 0)
	return o
}

// Pair is one extracted question/answer candidate.
type Pair struct {
	Question   string
	Answer     string
	Confidence models.Confidence
	Mode       Mode
}

// Extractor is stateless and safe for concurrent use.
type Extractor struct {
	norm *textnorm.Normalizer
	opts Options
}

func NewExtractor(norm *textnorm.Normalizer, opts Options) *Extractor {
	return &Extractor{norm: norm, opts: opts.withDefaults()}
}

// ExtractPairs returns the pairs found in raw, deduplicated by question hash
// with the most confident variant kept. Marker and tabular input bypass the
// sentence heuristic. Text without questions yields no pairs.
func (x *Extractor) ExtractPairs(raw string) []Pair {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var pairs []Pair
	switch {
	case strings.Contains(raw, x.opts.Marker):
		pairs = x.extractMarked(raw)
	default:
		if rows, ok := x.tabularRows(raw); ok {
			pairs = rows
		} else {
			pairs = x.extractSentences(raw)
		}
	}
	return x.dedupe(pairs)
}

// dedupe keeps one pair per question hash, preferring higher confidence and
// otherwise the first seen. Output keeps first-occurrence order.
func (x *Extractor) dedupe(pairs []Pair) []Pair {
	index := make(map[string]int)
	var out []Pair
	for _, p := range pairs {
		if strings.TrimSpace(p.Question) == "" || strings.TrimSpace(p.Answer) == "" {
			continue
		}
		h := x.norm.ContentHash(p.Question)
		if i, ok := index[h]; ok {
			if p.Confidence > out[i].Confidence {
				out[i] = p
			}
			continue
		}
		index[h] = len(out)
		out = append(out, p)
	}
	return out
}
