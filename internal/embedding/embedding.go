package embedding

import (
	"context"
	"math"
)

// Embedder converts text into a fixed-length vector. Implementations must be
// deterministic for identical input and must return a zero vector for empty
// text instead of an error.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Dimension() int
}

// Cosine returns the cosine similarity of two vectors in [-1, 1]. A zero-norm
// operand yields 0: the naive formula divides by the norm product and must
// not blow up on embeddings of empty text.
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
