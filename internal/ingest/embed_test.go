package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/errs"
)

func docsFor(texts ...string) []document.Document {
	docs := make([]document.Document, len(texts))
	for i, text := range texts {
		docs[i] = document.New("f.txt", i, text, time.Time{}, time.Time{})
	}
	return docs
}

func TestEmbedBatch_OneFailure(t *testing.T) {
	emb := &fakeEmbedder{}
	b := NewBatchEmbedder(emb, 3, 0, nil)
	docs := docsFor("alpha", "beta", "FAIL here", "gamma", "delta")

	out := b.EmbedBatch(context.Background(), docs)
	require.Len(t, out, len(docs))

	zero := make([]float32, testDim)
	failed := 0
	for i, e := range out {
		assert.Equal(t, docs[i].ID, e.ID)
		require.Len(t, e.Vector, testDim)
		if e.Failed() {
			failed++
			assert.Equal(t, zero, e.Vector)
			assert.ErrorIs(t, e.Err, errs.ErrEmbeddingService)
			assert.Equal(t, "f.txt-2", e.ID)
			continue
		}
		assert.Equal(t, testVector(docs[i].Content), e.Vector)
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, int64(len(docs)), emb.calls.Load())
}

func TestEmbedBatch_BoundedConcurrency(t *testing.T) {
	emb := &fakeEmbedder{delay: 20 * time.Millisecond}
	b := NewBatchEmbedder(emb, 2, 0, nil)

	texts := make([]string, 8)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk %d", i)
	}
	out := b.EmbedBatch(context.Background(), docsFor(texts...))

	assert.Len(t, out, 8)
	assert.LessOrEqual(t, emb.peak.Load(), int64(2))
	assert.Equal(t, int64(8), emb.calls.Load())
}

func TestEmbedBatch_Cancelled(t *testing.T) {
	emb := &fakeEmbedder{}
	b := NewBatchEmbedder(emb, 2, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := b.EmbedBatch(ctx, docsFor("a", "b", "c"))
	require.Len(t, out, 3)
	for _, e := range out {
		assert.True(t, e.Failed())
		assert.Len(t, e.Vector, testDim)
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	b := NewBatchEmbedder(&fakeEmbedder{}, 2, 0, nil)
	assert.Empty(t, b.EmbedBatch(context.Background(), nil))
}
