package embedding

import (
	"context"
	"math"
	"testing"
)

func TestLocalEmbedderIsDeterministic(t *testing.T) {
	embedder := NewLocalEmbedder(0)

	first, err := embedder.Embed(context.Background(), "senior go developer with kubernetes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := embedder.Embed(context.Background(), "senior go developer with kubernetes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != embedder.Dimension() {
		t.Fatalf("expected dimension %d, got %d", embedder.Dimension(), len(first))
	}

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("vectors differ at index %d: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestLocalEmbedderEmptyTextIsZeroVector(t *testing.T) {
	embedder := NewLocalEmbedder(32)

	vector, err := embedder.Embed(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(vector) != 32 {
		t.Fatalf("expected dimension 32, got %d", len(vector))
	}

	for i, v := range vector {
		if v != 0 {
			t.Fatalf("expected zero vector, got %v at index %d", v, i)
		}
	}
}

func TestLocalEmbedderVectorIsNormalized(t *testing.T) {
	embedder := NewLocalEmbedder(64)

	vector, err := embedder.Embed(context.Background(), "python sql airflow python")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var norm float64
	for _, v := range vector {
		norm += v * v
	}

	if math.Abs(math.Sqrt(norm)-1) > 1e-9 {
		t.Fatalf("expected unit norm, got %v", math.Sqrt(norm))
	}
}

func TestCosineSelfSimilarityIsOne(t *testing.T) {
	embedder := NewLocalEmbedder(0)

	vector, err := embedder.Embed(context.Background(), "distributed systems engineer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := Cosine(vector, vector); math.Abs(got-1) > 1e-9 {
		t.Fatalf("expected self similarity 1, got %v", got)
	}
}

func TestCosineZeroVectorIsZero(t *testing.T) {
	zero := make([]float64, 8)
	other := []float64{1, 0, 0, 0, 0, 0, 0, 0}

	if got := Cosine(zero, other); got != 0 {
		t.Fatalf("expected 0 for zero-norm operand, got %v", got)
	}

	if got := Cosine(other, zero); got != 0 {
		t.Fatalf("expected 0 for zero-norm operand, got %v", got)
	}

	if got := Cosine(zero, zero); got != 0 {
		t.Fatalf("expected 0 for two zero vectors, got %v", got)
	}
}

func TestCosineRange(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{-1, -2, -3}

	if got := Cosine(a, b); math.Abs(got+1) > 1e-9 {
		t.Fatalf("expected -1 for opposite vectors, got %v", got)
	}

	c := []float64{3, 2, 1}
	got := Cosine(a, c)
	if got < -1 || got > 1 {
		t.Fatalf("similarity out of range: %v", got)
	}
}
