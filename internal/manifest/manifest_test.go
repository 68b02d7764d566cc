package manifest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "manifest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	return s
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestUnchanged(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	mod := time.Unix(1700000000, 0)

	unchanged, err := s.Unchanged(ctx, "pj1/a.md", 10, mod)
	require.NoError(t, err)
	assert.False(t, unchanged, "unknown file is never unchanged")

	require.NoError(t, s.Record(ctx, Entry{Path: "pj1/a.md", Collection: "pj1", Size: 10, ModTime: mod, Chunks: 2}))

	tests := []struct {
		name string
		size int64
		mod  time.Time
		want bool
	}{
		{"same", 10, mod, true},
		{"same second", 10, mod.Add(300 * time.Millisecond), true},
		{"size changed", 11, mod, false},
		{"touched", 10, mod.Add(time.Minute), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Unchanged(ctx, "pj1/a.md", tt.size, tt.mod)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordUpsertsAndList(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	require.NoError(t, s.Record(ctx, Entry{Path: "b.txt", Collection: "root", Size: 1, ModTime: time.Unix(1, 0), Chunks: 1}))
	require.NoError(t, s.Record(ctx, Entry{Path: "a/x.md", Collection: "a", Size: 5, ModTime: time.Unix(2, 0), Chunks: 3}))
	require.NoError(t, s.Record(ctx, Entry{Path: "b.txt", Collection: "root", Size: 9, ModTime: time.Unix(3, 0), Chunks: 4}))

	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a/x.md", entries[0].Path)
	assert.Equal(t, "b.txt", entries[1].Path)
	assert.Equal(t, int64(9), entries[1].Size)
	assert.Equal(t, 4, entries[1].Chunks)
	assert.False(t, entries[1].IngestedAt.IsZero())
}

func TestReopenKeepsEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "manifest.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, Entry{Path: "a.txt", Collection: "root", Size: 1, ModTime: time.Unix(5, 0), Chunks: 1}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	unchanged, err := s.Unchanged(ctx, "a.txt", 1, time.Unix(5, 0))
	require.NoError(t, err)
	assert.True(t, unchanged)
}
