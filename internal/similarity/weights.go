package similarity

import (
	"fmt"
	"math"
)

// Metric names one component of the combined similarity score.
type Metric string

const (
	MetricExact          Metric = "exact"
	MetricPartial        Metric = "partial"
	MetricWordOverlap    Metric = "word_overlap"
	MetricKeywordOverlap Metric = "keyword_overlap"
	MetricLengthRatio    Metric = "length_ratio"
)

// Metrics lists every metric in reporting order.
var Metrics = []Metric{MetricExact, MetricPartial, MetricWordOverlap, MetricKeywordOverlap, MetricLengthRatio}

// Weights sets the contribution of each metric to the weighted average.
type Weights struct {
	Exact          float64 `mapstructure:"exact"`
	Partial        float64 `mapstructure:"partial"`
	WordOverlap    float64 `mapstructure:"word_overlap"`
	KeywordOverlap float64 `mapstructure:"keyword_overlap"`
	LengthRatio    float64 `mapstructure:"length_ratio"`
}

// DefaultWeights favours exact and keyword agreement over raw length.
func DefaultWeights() Weights {
	return Weights{
		Exact:          1.0,
		Partial:        0.8,
		WordOverlap:    0.7,
		KeywordOverlap: 0.9,
		LengthRatio:    0.3,
	}
}

// Of returns the weight of m.
func (w Weights) Of(m Metric) float64 {
	switch m {
	case MetricExact:
		return w.Exact
	case MetricPartial:
		return w.Partial
	case MetricWordOverlap:
		return w.WordOverlap
	case MetricKeywordOverlap:
		return w.KeywordOverlap
	case MetricLengthRatio:
		return w.LengthRatio
	}
	return 0
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.Exact + w.Partial + w.WordOverlap + w.KeywordOverlap + w.LengthRatio
}

// Validate rejects negative or non-finite weights and an all-zero set.
func (w Weights) Validate() error {
	for _, m := range Metrics {
		v := w.Of(m)
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("weight %s must be a non-negative number, got %v", m, v)
		}
	}
	if w.Sum() == 0 {
		return fmt.Errorf("at least one similarity weight must be positive")
	}
	return nil
}
