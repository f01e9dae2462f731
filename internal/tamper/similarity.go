package tamper

import (
	"fmt"
	"math"

	"tamperwatch/internal/embedding"
)

const (
	// MinDistance and MaxDistance bound CosineDistance.
	MinDistance = 0.0
	MaxDistance = 2.0
)

// CosineDistance returns 1 - cos(a, b) in [0, 2]. Identical directions give
// 0, orthogonal vectors 1, opposite vectors 2. The result is symmetric.
func CosineDistance(a, b embedding.Vector) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("%w: empty vector", ErrDegenerateEmbedding)
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := a[i], b[i]
		if !finite(x) || !finite(y) {
			return 0, fmt.Errorf("%w: non-finite component at %d", ErrDegenerateEmbedding, i)
		}
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("%w: zero norm", ErrDegenerateEmbedding)
	}

	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	distance := 1 - similarity
	// Rounding can push identical vectors slightly below zero.
	switch {
	case distance < MinDistance:
		distance = MinDistance
	case distance > MaxDistance:
		distance = MaxDistance
	}
	return distance, nil
}

// checkVector rejects vectors that cannot take part in a distance.
func checkVector(v embedding.Vector) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty vector", ErrDegenerateEmbedding)
	}
	var norm float64
	for i, x := range v {
		if !finite(x) {
			return fmt.Errorf("%w: non-finite component at %d", ErrDegenerateEmbedding, i)
		}
		norm += x * x
	}
	if norm == 0 {
		return fmt.Errorf("%w: zero norm", ErrDegenerateEmbedding)
	}
	return nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
