package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// StaticProvider is a deterministic local embedder for development and tests.
//
// It hashes word-level tokens into a fixed number of buckets and
// L2-normalizes the result, so texts sharing vocabulary land near each other
// under cosine similarity. It is not a semantic model; production deployments
// use the openai provider.
type StaticProvider struct {
	dimensions int
}

// NewStaticProvider creates a deterministic hashing embedder.
func NewStaticProvider(dimensions int) (*StaticProvider, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive", ErrInvalidConfig)
	}
	return &StaticProvider{dimensions: dimensions}, nil
}

// Embed implements Provider.
func (p *StaticProvider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, p.dimensions)

	tokens := tokenize(text)
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum32()
		bucket := int(sum % uint32(p.dimensions))
		// Sign bit from the hash spreads tokens across both directions.
		if sum&0x80000000 != 0 {
			vec[bucket] -= 1
		} else {
			vec[bucket] += 1
		}
	}

	normalize(vec)
	return vec, nil
}

// Dimension implements Provider.
func (p *StaticProvider) Dimension() int {
	return p.dimensions
}

// Close implements Provider.
func (p *StaticProvider) Close() error {
	return nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

var _ Provider = (*StaticProvider)(nil)
