package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const defaultDimension = 256

// LocalEmbedder is a deterministic, offline embedding provider. Tokens are
// hashed into a fixed-size bag-of-words vector which is then L2-normalized.
// It is no match for a real embedding model, but it is stable, dependency-free
// and good enough for cosine ranking of job descriptions against a resume.
type LocalEmbedder struct {
	dimension int
}

func NewLocalEmbedder(dimension int) *LocalEmbedder {
	if dimension <= 0 {
		dimension = defaultDimension
	}
	return &LocalEmbedder{dimension: dimension}
}

func (e *LocalEmbedder) Dimension() int {
	return e.dimension
}

func (e *LocalEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vector := make([]float64, e.dimension)

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return vector, nil
	}

	for _, token := range tokens {
		h := fnv.New32a()
		h.Write([]byte(token))
		vector[int(h.Sum32())%e.dimension]++
	}

	var norm float64
	for _, v := range vector {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	for i := range vector {
		vector[i] /= norm
	}

	return vector, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
