package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReingestsChangedFiles(t *testing.T) {
	root := writeTree(t, map[string]string{"pj1/existing.txt": "already here"})
	store := newMemStore(t)
	o, _ := newTestOrchestrator(t, testConfig(), store)

	w, err := NewWatcher(o, root, 50*time.Millisecond)
	require.NoError(t, err)

	summaries := make(chan *Summary, 4)
	w.OnIngest = func(s *Summary, err error) {
		if err == nil {
			select {
			case summaries <- s:
			default:
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.NoError(t, os.WriteFile(filepath.Join(root, "pj1", "new.md"), []byte("fresh notes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pj1", "ignored.bin"), []byte("x"), 0o644))

	select {
	case s := <-summaries:
		assert.Equal(t, 1, s.Files)
		assert.Equal(t, "pj1/new.md", s.Outcomes[0].Path)
		assert.Equal(t, map[string]int{"pj1": 1}, s.Collections)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for re-ingestion")
	}

	records, err := store.Peek(context.Background(), "pj1", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "fresh notes", records[0].Content)
}

func TestWatcher_NewDirectory(t *testing.T) {
	root := t.TempDir()
	o, _ := newTestOrchestrator(t, testConfig(), newMemStore(t))

	w, err := NewWatcher(o, root, 50*time.Millisecond)
	require.NoError(t, err)

	summaries := make(chan *Summary, 4)
	w.OnIngest = func(s *Summary, err error) {
		if err == nil && s.Files > 0 {
			select {
			case summaries <- s:
			default:
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	dir := filepath.Join(root, "pj2", "docs")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("inside a new directory"), 0o644))

	select {
	case s := <-summaries:
		assert.Contains(t, s.Collections, "pj2-docs")
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for re-ingestion")
	}
}

func TestNewWatcher_InvalidRoot(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig(), newMemStore(t))
	_, err := NewWatcher(o, filepath.Join(t.TempDir(), "missing"), 0)
	assert.Error(t, err)
}

func TestWatcher_SkipsIgnoredFiles(t *testing.T) {
	root := writeTree(t, map[string]string{
		IgnoreFile:      "secret.md\n",
		"pj1/keep.txt": "kept",
	})
	store := newMemStore(t)
	o, _ := newTestOrchestrator(t, testConfig(), store)

	w, err := NewWatcher(o, root, 50*time.Millisecond)
	require.NoError(t, err)

	summaries := make(chan *Summary, 4)
	w.OnIngest = func(s *Summary, err error) {
		if err == nil {
			select {
			case summaries <- s:
			default:
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.NoError(t, os.WriteFile(filepath.Join(root, "pj1", "secret.md"), []byte("do not index"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pj1", "notes.md"), []byte("index me"), 0o644))

	select {
	case s := <-summaries:
		require.Len(t, s.Outcomes, 1)
		assert.Equal(t, "pj1/notes.md", s.Outcomes[0].Path)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for re-ingestion")
	}

	records, err := store.Peek(context.Background(), "pj1", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "index me", records[0].Content)
}

func TestWatcher_ReloadsIgnoreFile(t *testing.T) {
	root := writeTree(t, map[string]string{"pj1/keep.txt": "kept"})
	o, _ := newTestOrchestrator(t, testConfig(), newMemStore(t))

	w, err := NewWatcher(o, root, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.watcher.Close() })

	pending := map[string]struct{}{}
	require.NoError(t, os.WriteFile(filepath.Join(root, IgnoreFile), []byte("draft.md\n"), 0o644))
	assert.False(t, w.queue(filepath.Join(root, IgnoreFile), pending))
	assert.False(t, w.queue(filepath.Join(root, "pj1", "draft.md"), pending))
	assert.True(t, w.queue(filepath.Join(root, "pj1", "final.md"), pending))
	assert.Equal(t, map[string]struct{}{"pj1/final.md": {}}, pending)
}
