package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/errs"
	"github.com/fyrsmithlabs/docrag/internal/extract"
	"github.com/fyrsmithlabs/docrag/internal/telemetry"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

func sampleTree(t *testing.T) string {
	return writeTree(t, map[string]string{
		"sample.txt":          text120(),
		"pj1/sample.md":       "short markdown",
		"pj1/dir1/sample.txt": "nested text",
		"pj1/dir1/dir2/x.txt": "deeper nested text",
		"pj1/image.png":       "\x89PNG",
	})
}

func TestNew_InvalidConfiguration(t *testing.T) {
	ex := extract.New(config.ExtractConfig{})
	store := newMemStore(t)

	_, err := New(Config{ChunkSize: 0}, ex, &fakeEmbedder{}, store)
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)

	_, err = New(testConfig(), ex, &fakeEmbedder{}, nil)
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)

	cfg := testConfig()
	cfg.Exclude = []string{"[oops"}
	_, err = New(cfg, ex, &fakeEmbedder{}, store)
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
}

func TestIngest_StoresPerCollection(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)
	o, _ := newTestOrchestrator(t, testConfig(), store)

	summary, err := o.Ingest(ctx, sampleTree(t))
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Files)
	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 6, summary.Documents)
	assert.Equal(t, 6, summary.Stored)
	assert.Equal(t, 0, summary.FailedDocs)
	assert.Equal(t, map[string]int{"root": 3, "pj1": 1, "pj1-dir1": 2}, summary.Collections)
	assert.NotEmpty(t, summary.RunID)
	assert.Positive(t, summary.Duration)

	infos, err := store.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []vectorstore.CollectionInfo{
		{Name: "pj1", Count: 1},
		{Name: "pj1-dir1", Count: 2},
		{Name: "root", Count: 3},
	}, infos)

	records, err := store.Peek(ctx, "pj1-dir1", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "pj1/dir1/dir2/x.txt-0", records[0].ID)
	assert.Equal(t, "pj1/dir1/sample.txt-0", records[1].ID)
}

func TestIngest_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)
	o, _ := newTestOrchestrator(t, testConfig(), store)
	root := sampleTree(t)

	_, err := o.Ingest(ctx, root)
	require.NoError(t, err)
	_, err = o.Ingest(ctx, root)
	require.NoError(t, err)

	infos, err := store.ListCollections(ctx)
	require.NoError(t, err)
	total := 0
	for _, info := range infos {
		total += info.Count
	}
	assert.Equal(t, 6, total)
}

func TestIngest_FailedEmbeddingIsNotStored(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)
	o, _ := newTestOrchestrator(t, testConfig(), store)

	text := strings.Repeat("x", 100) + "FAIL" + strings.Repeat("y", 16)
	root := writeTree(t, map[string]string{"doc.txt": text})

	summary, err := o.Ingest(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Documents)
	assert.Equal(t, 2, summary.Stored)
	assert.Equal(t, 1, summary.FailedDocs)
	assert.Equal(t, StatusProcessed, summary.Outcomes[0].Status)
	assert.Equal(t, "1 of 3 documents failed", summary.Outcomes[0].Reason)

	// The sentinel for the failed chunk is never written.
	records, err := store.Peek(ctx, "root", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	ids := []string{records[0].ID, records[1].ID}
	assert.Equal(t, []string{"doc.txt-0", "doc.txt-1"}, ids)
}

func TestIngest_StoreFailureIsolatedPerDocument(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: newMemStore(t), failIDs: map[string]bool{"sample.txt-1": true}}
	o, _ := newTestOrchestrator(t, testConfig(), store)

	summary, err := o.Ingest(ctx, sampleTree(t))
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Stored)
	assert.Equal(t, 1, summary.FailedDocs)
	assert.Equal(t, 2, summary.Collections["root"])

	records, err := store.Peek(ctx, "root", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "sample.txt-0", records[0].ID)
	assert.Equal(t, "sample.txt-2", records[1].ID)
}

func TestIngest_CollectionCreateFailure(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: newMemStore(t), failCollections: map[string]bool{"pj1": true}}
	o, _ := newTestOrchestrator(t, testConfig(), store)

	summary, err := o.Ingest(ctx, sampleTree(t))
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Stored)
	assert.Equal(t, 1, summary.FailedDocs)
	assert.NotContains(t, summary.Collections, "pj1")
}

func TestIngest_Manifest(t *testing.T) {
	ctx := context.Background()
	m := manifestAt(t)
	o, emb := newTestOrchestrator(t, testConfig(), newMemStore(t), WithManifest(m))
	root := sampleTree(t)

	first, err := o.Ingest(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 6, first.Stored)
	calls := emb.calls.Load()

	second, err := o.Ingest(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Stored)
	assert.Equal(t, 5, second.Skipped)
	assert.Equal(t, calls, emb.calls.Load(), "unchanged files are not embedded again")
	for _, oc := range second.Outcomes {
		if oc.Path != "pj1/image.png" {
			assert.Equal(t, "unchanged since last ingestion", oc.Reason)
		}
	}

	o.cfg.Force = true
	forced, err := o.Ingest(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 6, forced.Stored)

	entries, err := m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestIngest_PublishesEvents(t *testing.T) {
	pub := &recordingPublisher{}
	o, _ := newTestOrchestrator(t, testConfig(), newMemStore(t), WithPublisher(pub))

	_, err := o.Ingest(context.Background(), sampleTree(t))
	require.NoError(t, err)

	assert.Equal(t, 1, pub.runs)
	assert.Contains(t, pub.files, "skipped:pj1/image.png")
	assert.Contains(t, pub.files, "processed:sample.txt")
	assert.Len(t, pub.files, 5)
}

func TestIngest_Cancelled(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig(), newMemStore(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Ingest(ctx, sampleTree(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIngestFiles(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)
	o, _ := newTestOrchestrator(t, testConfig(), store)
	root := sampleTree(t)

	summary, err := o.IngestFiles(ctx, root, []string{"pj1/sample.md", "gone.txt"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Files)
	assert.Equal(t, map[string]int{"pj1": 1}, summary.Collections)
}

func TestIngestFiles_HonoursIgnoreFile(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(t)
	cfg := testConfig()
	cfg.Exclude = []string{"drafts/**"}
	o, _ := newTestOrchestrator(t, cfg, store)
	root := writeTree(t, map[string]string{
		IgnoreFile:        "secret.md\n",
		"pj1/secret.md":   "do not index",
		"pj1/keep.txt":    "kept",
		"drafts/plan.txt": "not yet",
	})

	summary, err := o.IngestFiles(ctx, root, []string{"pj1/secret.md", "pj1/keep.txt", "drafts/plan.txt", IgnoreFile})
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, "pj1/keep.txt", summary.Outcomes[0].Path)
	assert.Equal(t, map[string]int{"pj1": 1}, summary.Collections)
}

func TestIngest_Span(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	tt.Install(t)

	o, _ := newTestOrchestrator(t, testConfig(), newMemStore(t))
	_, err := o.Ingest(context.Background(), sampleTree(t))
	require.NoError(t, err)

	tt.AssertSpanExists(t, "ingest.run")
	tt.AssertSpanAttribute(t, "ingest.run", "stored", int64(6))
	tt.AssertSpanExists(t, "vectorstore.chromem.add")
}
