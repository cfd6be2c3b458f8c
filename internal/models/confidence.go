package models

import (
	"fmt"
	"math"
)

// Confidence is a trust value in [0,100] attached to a knowledge entry.
type Confidence float64

const (
	MinConfidence     Confidence = 0
	MaxConfidence     Confidence = 100
	DefaultConfidence Confidence = 100
)

// NewConfidence validates v and returns it as a Confidence.
func NewConfidence(v float64) (Confidence, error) {
	if math.IsNaN(v) || v < float64(MinConfidence) || v > float64(MaxConfidence) {
		return 0, &ValidationError{Field: "confidence", Reason: fmt.Sprintf("must be within [0,100], got %v", v)}
	}
	return Confidence(v), nil
}

// ClampConfidence forces v into [0,100]. NaN maps to zero.
func ClampConfidence(v float64) Confidence {
	switch {
	case math.IsNaN(v), v < float64(MinConfidence):
		return MinConfidence
	case v > float64(MaxConfidence):
		return MaxConfidence
	}
	return Confidence(v)
}
