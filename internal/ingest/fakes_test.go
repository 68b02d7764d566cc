package ingest

import (
	"context"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/errs"
	"github.com/fyrsmithlabs/docrag/internal/events"
	"github.com/fyrsmithlabs/docrag/internal/extract"
	"github.com/fyrsmithlabs/docrag/internal/manifest"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

const testDim = 4

// fakeEmbedder embeds deterministically and fails any text containing "FAIL".
type fakeEmbedder struct {
	calls    atomic.Int64
	inflight atomic.Int64
	peak     atomic.Int64
	delay    time.Duration
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		if strings.Contains(t, "FAIL") {
			return nil, errors.Join(errs.ErrEmbeddingService, errors.New("model refused"))
		}
		out[i] = testVector(t)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) Dimension() int { return testDim }
func (f *fakeEmbedder) Close() error   { return nil }

func testVector(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	sum := h.Sum32()
	return []float32{1, float32(sum%97) / 97, float32(sum%89) / 89, float32(len(text)%13) / 13}
}

// flakyStore fails any Add that contains one of failIDs, and CreateOrGet for
// failCollections.
type flakyStore struct {
	vectorstore.Store
	mu              sync.Mutex
	failIDs         map[string]bool
	failCollections map[string]bool
	adds            int
}

func (s *flakyStore) CreateOrGet(ctx context.Context, name string) error {
	if s.failCollections[name] {
		return errors.Join(errs.ErrVectorStore, errors.New("create refused"))
	}
	return s.Store.CreateOrGet(ctx, name)
}

func (s *flakyStore) Add(ctx context.Context, name string, records []vectorstore.Record) error {
	s.mu.Lock()
	s.adds++
	s.mu.Unlock()
	for _, r := range records {
		if s.failIDs[r.ID] {
			return errors.Join(errs.ErrVectorStore, errors.New("write refused"))
		}
	}
	return s.Store.Add(ctx, name, records)
}

func newMemStore(t *testing.T) vectorstore.Store {
	t.Helper()
	s, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{Dimension: testDim}, nil)
	require.NoError(t, err)
	return s
}

func testConfig() Config {
	return Config{ChunkSize: 50, FileBatchSize: 2, Concurrency: 3}
}

func newTestOrchestrator(t *testing.T, cfg Config, store vectorstore.Store, opts ...Option) (*Orchestrator, *fakeEmbedder) {
	t.Helper()
	emb := &fakeEmbedder{}
	o, err := New(cfg, extract.New(config.ExtractConfig{}), emb, store, opts...)
	require.NoError(t, err)
	return o, emb
}

// writeTree creates files under a new temp dir.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func manifestAt(t *testing.T) *manifest.Store {
	t.Helper()
	m, err := manifest.Open(filepath.Join(t.TempDir(), "manifest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

// recordingPublisher keeps published events.
type recordingPublisher struct {
	mu    sync.Mutex
	files []string
	runs  int
}

func (p *recordingPublisher) PublishFile(_ context.Context, ev events.FileEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files = append(p.files, ev.Status+":"+ev.Path)
	return nil
}

func (p *recordingPublisher) PublishRun(context.Context, events.RunEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs++
	return nil
}

func (p *recordingPublisher) Close() error { return nil }
