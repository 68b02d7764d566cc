package embeddings

import (
	"context"
	"hash/fnv"
	"strings"
	"sync/atomic"
)

// TestProvider embeds text deterministically from word hashes, so texts that
// share words land close together. It makes no network calls.
type TestProvider struct {
	dim   int
	calls atomic.Int64
}

// NewTestProvider returns a TestProvider producing dim-sized vectors.
func NewTestProvider(dim int) *TestProvider {
	if dim <= 0 {
		dim = 8
	}
	return &TestProvider{dim: dim}
}

// EmbedDocuments embeds each text.
func (p *TestProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	p.calls.Add(1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vector(t)
	}
	return out, nil
}

// EmbedQuery embeds one text.
func (p *TestProvider) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	p.calls.Add(1)
	return p.vector(text), nil
}

// Dimension returns the vector length.
func (p *TestProvider) Dimension() int { return p.dim }

// Close is a no-op.
func (p *TestProvider) Close() error { return nil }

// Calls returns the number of embed requests served.
func (p *TestProvider) Calls() int64 { return p.calls.Load() }

func (p *TestProvider) vector(text string) []float32 {
	v := make([]float32, p.dim)
	v[0] = 0.01
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[int(h.Sum32()%uint32(p.dim))]++
	}
	return v
}
