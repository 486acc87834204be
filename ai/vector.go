package ai

import "math"

// NormalizeVector scales v to unit length, so stored and query vectors
// compare by plain dot product. The input slice is left untouched. A
// zero vector has no direction and comes back as a fresh zero vector.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	norm := float32(math.Sqrt(sumSquares))

	normalized := make([]float32, len(v))
	if norm == 0 {
		return normalized
	}
	for i, val := range v {
		normalized[i] = val / norm
	}
	return normalized
}
