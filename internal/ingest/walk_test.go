package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docrag/internal/errs"
	"github.com/fyrsmithlabs/docrag/internal/extract"
)

func text120() string {
	var b strings.Builder
	for i := 0; i < 120; i++ {
		b.WriteByte('a' + byte(i%26))
	}
	return b.String()
}

func TestProcessDirectory_ChunksFile(t *testing.T) {
	text := text120()
	root := writeTree(t, map[string]string{"pj1/dir1/sample.txt": text})
	o, _ := newTestOrchestrator(t, testConfig(), newMemStore(t))

	result, err := o.ProcessDirectory(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, result.Files, 1)

	fr := result.Files[0]
	assert.Equal(t, "pj1/dir1/sample.txt", fr.RelPath)
	assert.Equal(t, "pj1-dir1", fr.Collection)
	assert.Equal(t, extract.KindText, fr.Kind)
	require.Len(t, fr.Documents, 3)

	docs := fr.Documents
	assert.Equal(t, text[0:50], docs[0].Content)
	assert.Equal(t, text[45:95], docs[1].Content)
	assert.Equal(t, text[90:120], docs[2].Content)
	assert.Equal(t, docs[0].Content[45:], docs[1].Content[:5])

	for i, d := range docs {
		assert.Equal(t, "pj1/dir1/sample.txt-"+string(rune('0'+i)), d.ID)
		assert.Equal(t, i, d.Metadata.Chunk.Index)
		assert.Equal(t, "pj1/dir1/sample.txt", d.Metadata.File.Path)
		assert.False(t, d.Metadata.File.UpdatedAt.IsZero())
		assert.False(t, d.Metadata.File.CreatedAt.After(d.Metadata.File.UpdatedAt.Add(1)))
	}

	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, StatusProcessed, result.Outcomes[0].Status)
	assert.Equal(t, 3, result.Outcomes[0].Documents)
	assert.Len(t, result.Documents(), 3)
}

func TestProcessDirectory_Outcomes(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.txt":              "plain text",
		"b.bin":              "\x00\x01",
		"c.md":               "bad \xff utf8",
		"d.markdown":         "# title",
		".git/config.txt":    "never visited",
		"node_modules/m.md":  "never visited",
		"drafts/wip.md":      "excluded by ignore file",
		"pj1/notes.log.txt":  "excluded by config",
		".docragignore":      "drafts/\n",
		"pj1/keep/report.md": "kept",
	})
	cfg := testConfig()
	cfg.Exclude = []string{"*.log.txt"}
	o, _ := newTestOrchestrator(t, cfg, newMemStore(t))

	result, err := o.ProcessDirectory(context.Background(), root)
	require.NoError(t, err)

	var paths []string
	byPath := make(map[string]Outcome)
	for _, oc := range result.Outcomes {
		paths = append(paths, oc.Path)
		byPath[oc.Path] = oc
	}
	assert.Equal(t, []string{"a.txt", "b.bin", "c.md", "d.markdown", "pj1/keep/report.md"}, paths)

	assert.Equal(t, StatusProcessed, byPath["a.txt"].Status)
	assert.Equal(t, StatusSkipped, byPath["b.bin"].Status)
	assert.ErrorIs(t, byPath["b.bin"].Err, errs.ErrUnsupportedFileType)
	assert.Equal(t, StatusFailed, byPath["c.md"].Status)
	assert.ErrorIs(t, byPath["c.md"].Err, errs.ErrExtraction)
	assert.NotEmpty(t, byPath["c.md"].Reason)
	assert.Equal(t, "pj1-keep", byPath["pj1/keep/report.md"].Collection)

	assert.Len(t, result.Files, 3)
}

func TestProcessDirectory_MaxFileSize(t *testing.T) {
	root := writeTree(t, map[string]string{
		"small.txt": "tiny",
		"large.txt": strings.Repeat("x", 200),
	})
	cfg := testConfig()
	cfg.MaxFileSize = 100
	o, _ := newTestOrchestrator(t, cfg, newMemStore(t))

	result, err := o.ProcessDirectory(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, StatusSkipped, result.Outcomes[0].Status)
	assert.Contains(t, result.Outcomes[0].Reason, "max size")
	assert.Equal(t, StatusProcessed, result.Outcomes[1].Status)
}

func TestProcessDirectory_EmptyFile(t *testing.T) {
	root := writeTree(t, map[string]string{"empty.txt": ""})
	o, _ := newTestOrchestrator(t, testConfig(), newMemStore(t))

	result, err := o.ProcessDirectory(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.Empty(t, result.Files[0].Documents)
}

func TestProcessDirectory_Cancelled(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "x", "b.txt": "y"})
	o, _ := newTestOrchestrator(t, testConfig(), newMemStore(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.ProcessDirectory(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidateRoot(t *testing.T) {
	_, err := validateRoot("")
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)

	_, err = validateRoot(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)

	file := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = validateRoot(file)
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)

	dir := t.TempDir()
	got, err := validateRoot(dir + "/.")
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestExcluded(t *testing.T) {
	tests := []struct {
		rel      string
		patterns []string
		want     bool
	}{
		{"a.log", []string{"*.log"}, true},
		{"pj1/dir/a.log", []string{"*.log"}, true},
		{"pj1/a.md", []string{"*.log"}, false},
		{"drafts/a.md", []string{"**/drafts/**"}, true},
		{"pj1/drafts/deep/a.md", []string{"**/drafts/**"}, true},
		{"pj1/drafts.md", []string{"**/drafts/**"}, false},
		{"archive/a.md", []string{"archive/**"}, true},
		{"pj1/archive/a.md", []string{"archive/**"}, false},
		{"pj1/secret.md", []string{"pj1/secret.md"}, true},
		{"x/pj1/secret.md", []string{"**/pj1/secret.md"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.want, excluded(tt.rel, tt.patterns))
		})
	}
}

func TestValidatePatterns(t *testing.T) {
	assert.NoError(t, validatePatterns([]string{"*.log", "**/drafts/**"}))
	assert.ErrorIs(t, validatePatterns([]string{"[abc"}), errs.ErrInvalidConfiguration)
}
