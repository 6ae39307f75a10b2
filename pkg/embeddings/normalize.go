// Package embeddings provides vector helpers for image embeddings (pooling, L2 normalization, cosine distance).
package embeddings

import (
	"errors"
	"math"
)

var (
	// ErrEmptyVector is returned when pooling is asked to operate on no data.
	ErrEmptyVector = errors.New("embeddings: empty vector")
	// ErrShapeMismatch is returned when a flat buffer does not match the declared shape.
	ErrShapeMismatch = errors.New("embeddings: data length does not match shape")
)

// NormalizeL2 scales vector in place to unit length so cosine similarity reduces to a dot product.
// A zero vector is left unchanged.
func NormalizeL2(vector []float32) {
	var sumSquares float64

	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}

	if sumSquares == 0 {
		return
	}

	magnitude := math.Sqrt(sumSquares)

	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}
}

// MeanPool averages a row-major [rows, dim] buffer over its rows and returns a new [dim] vector.
// A buffer with a single row is returned as a copy.
func MeanPool(data []float32, rows, dim int) ([]float32, error) {
	if rows <= 0 || dim <= 0 || len(data) == 0 {
		return nil, ErrEmptyVector
	}

	if rows*dim != len(data) {
		return nil, ErrShapeMismatch
	}

	sums := make([]float64, dim)
	for r := 0; r < rows; r++ {
		row := data[r*dim : (r+1)*dim]
		for d, v := range row {
			sums[d] += float64(v)
		}
	}

	out := make([]float32, dim)
	for d := range sums {
		out[d] = float32(sums[d] / float64(rows))
	}

	return out, nil
}

// Dot returns the dot product of a and b. Vectors of different length yield 0.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}

	return sum
}

// CosineDistance returns 1 - cosine_similarity (smaller is more similar).
// Mismatched or zero vectors are at the maximum distance of 1.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 1.0
	}

	return 1.0 - dotProduct/(math.Sqrt(normA)*math.Sqrt(normB))
}

// IsFinite reports whether every component of v is a finite number.
func IsFinite(v []float32) bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}

	return true
}
