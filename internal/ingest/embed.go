package ingest

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/errs"
)

// Embedded is the embedding of one document. A failed embedding carries the
// zero-vector sentinel and the cause.
type Embedded struct {
	ID     string
	Vector []float32
	Err    error
}

// Failed reports whether the embedding is the sentinel.
func (e Embedded) Failed() bool {
	return e.Err != nil
}

// BatchEmbedder embeds documents one request per chunk with bounded
// parallelism and an optional request rate limit.
type BatchEmbedder struct {
	provider    embeddings.Provider
	concurrency int
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewBatchEmbedder creates a BatchEmbedder. requestsPerSecond <= 0 disables
// rate limiting.
func NewBatchEmbedder(p embeddings.Provider, concurrency int, requestsPerSecond float64, logger *zap.Logger) *BatchEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	b := &BatchEmbedder{provider: p, concurrency: concurrency, logger: logger}
	if requestsPerSecond > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), concurrency)
	}
	return b
}

// EmbedBatch returns exactly len(docs) embeddings, in the order of docs.
// Results are collected by document ID, so completion order does not matter.
func (b *BatchEmbedder) EmbedBatch(ctx context.Context, docs []document.Document) []Embedded {
	var (
		mu       sync.Mutex
		vectors  = make(map[string][]float32, len(docs))
		failures = make(map[string]error)
		g        errgroup.Group
	)
	g.SetLimit(b.concurrency)

	for _, d := range docs {
		g.Go(func() error {
			vec, err := b.embedOne(ctx, d.Content)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[d.ID] = err
			} else {
				vectors[d.ID] = vec
			}
			return nil
		})
	}
	_ = g.Wait()

	dim := b.provider.Dimension()
	out := make([]Embedded, len(docs))
	for i, d := range docs {
		if vec, ok := vectors[d.ID]; ok {
			out[i] = Embedded{ID: d.ID, Vector: vec}
			continue
		}
		err := failures[d.ID]
		b.logger.Warn("chunk embedding failed", zap.String("id", d.ID), zap.Error(err))
		out[i] = Embedded{ID: d.ID, Vector: make([]float32, dim), Err: err}
	}
	return out
}

func (b *BatchEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrEmbeddingService, err)
		}
	}
	vecs, err := b.provider.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 vector, got %d", errs.ErrEmbeddingService, len(vecs))
	}
	return vecs[0], nil
}
