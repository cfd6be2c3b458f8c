package vectorindex

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Normalize returns a unit-length copy of v, so a dot product of two
// normalized vectors is their cosine similarity. A zero vector is copied
// unchanged.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	norm := math.Sqrt(dot(v, v))
	if norm == 0 {
		copy(out, v)
		return out
	}
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// EncodeVector packs v as little-endian float32s for storage.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 0, len(v)*4)
	for _, f := range v {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return buf
}

// DecodeVector reverses EncodeVector. Truncated input and non-finite
// components are rejected.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole vector", ErrDimensionMismatch, len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		f := math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return nil, fmt.Errorf("decode vector: component %d is not finite", i)
		}
		v[i] = f
	}
	return v, nil
}
