package ignore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"empty line", "", nil},
		{"whitespace only", "   ", nil},
		{"comment", "# drafts", nil},
		{"negation dropped", "!keep.md", nil},
		{"escaped hash", `\#notes.md`, []string{"#notes.md", "**/#notes.md/**"}},
		{"file glob", "*.log", []string{"*.log", "**/*.log/**"}},
		{"directory", "drafts/", []string{"**/drafts/**"}},
		{"anchored", "/archive", []string{"archive", "archive/**"}},
		{"nested", "pj1/old", []string{"pj1/old", "pj1/old/**"}},
		{"nested directory", "pj1/old/", []string{"pj1/old/**"}},
		{"double star", "**/tmp", []string{"**/tmp", "**/tmp/**"}},
		{"trailing CR", "*.bak\r", []string{"*.bak", "**/*.bak/**"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLine(tt.line))
		})
	}
}

func TestParse(t *testing.T) {
	patterns, err := Parse(strings.NewReader("# comment\n\ndrafts/\n*.tmp\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"**/drafts/**", "*.tmp", "**/*.tmp/**"}, patterns)
}

func TestParseProject(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".docragignore"), []byte("drafts/\n*.tmp\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.tmp\nbuild/\n"), 0o644))

	patterns, err := NewParser(".docragignore", ".gitignore").ParseProject(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"**/drafts/**", "*.tmp", "**/*.tmp/**", "**/build/**"}, patterns)
}

func TestParseProject_NoFiles(t *testing.T) {
	patterns, err := NewParser(".docragignore").ParseProject(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, patterns)
}
