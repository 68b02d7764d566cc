package splitter_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docrag/internal/errs"
	"github.com/fyrsmithlabs/docrag/internal/splitter"
)

func TestSplit_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int
		overlap   int
	}{
		{name: "zero chunk size", chunkSize: 0, overlap: 0},
		{name: "negative chunk size", chunkSize: -5, overlap: 0},
		{name: "negative overlap", chunkSize: 10, overlap: -1},
		{name: "overlap equals chunk size", chunkSize: 10, overlap: 10},
		{name: "overlap larger than chunk size", chunkSize: 10, overlap: 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := splitter.Split("some text", tt.chunkSize, tt.overlap)
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
			assert.Nil(t, chunks)

			s, err := splitter.New(tt.chunkSize, tt.overlap)
			assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
			assert.Nil(t, s)
		})
	}
}

func TestSplit_EmptyText(t *testing.T) {
	chunks, err := splitter.Split("", 50, 5)
	require.NoError(t, err)
	assert.NotNil(t, chunks)
	assert.Empty(t, chunks)
}

func TestSplit_ShorterThanChunk(t *testing.T) {
	chunks, err := splitter.Split("hello", 50, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, chunks)
}

func TestSplit_ExactlyOneChunk(t *testing.T) {
	text := strings.Repeat("a", 50)
	chunks, err := splitter.Split(text, 50, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{text}, chunks)
}

func TestSplit_120CharsChunk50Overlap5(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 120; i++ {
		b.WriteByte(byte('a' + i%26))
	}
	text := b.String()

	chunks, err := splitter.Split(text, 50, 5)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, text[0:50], chunks[0])
	assert.Equal(t, text[45:95], chunks[1])
	assert.Equal(t, text[90:120], chunks[2])
	assert.Equal(t, chunks[0][45:], chunks[1][:5])
	assert.Equal(t, chunks[1][45:], chunks[2][:5])
}

func TestSplit_CountsRunesNotBytes(t *testing.T) {
	text := strings.Repeat("日本語テキスト", 10) // 70 runes, 210 bytes

	chunks, err := splitter.Split(text, 20, 2)
	require.NoError(t, err)

	for i, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk), "chunk %d is not valid UTF-8", i)
		if i < len(chunks)-1 {
			assert.Equal(t, 20, utf8.RuneCountInString(chunk), "chunk %d", i)
		}
	}
	assert.Equal(t, text, reconstruct(chunks, 2))
}

func TestSplit_Properties(t *testing.T) {
	texts := []string{
		"a",
		"The quick brown fox jumps over the lazy dog.",
		strings.Repeat("lorem ipsum dolor sit amet ", 40),
		strings.Repeat("ü€😀x", 33),
	}
	params := []struct{ chunkSize, overlap int }{
		{1, 0}, {2, 1}, {7, 0}, {7, 3}, {10, 9}, {50, 5}, {1000, 100},
	}

	for _, text := range texts {
		for _, p := range params {
			chunks, err := splitter.Split(text, p.chunkSize, p.overlap)
			require.NoError(t, err)
			require.NotEmpty(t, chunks)

			for i, chunk := range chunks {
				n := utf8.RuneCountInString(chunk)
				assert.LessOrEqual(t, n, p.chunkSize)
				assert.Positive(t, n)
				if i < len(chunks)-1 {
					assert.Equal(t, p.chunkSize, n)
				}
			}

			if p.overlap > 0 {
				for i := 0; i+1 < len(chunks); i++ {
					prev := []rune(chunks[i])
					next := []rune(chunks[i+1])
					assert.Equal(t, string(prev[len(prev)-p.overlap:]), string(next[:p.overlap]))
				}
			}

			assert.Equal(t, text, reconstruct(chunks, p.overlap),
				"chunkSize=%d overlap=%d", p.chunkSize, p.overlap)
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("determinism ", 100)
	first, err := splitter.Split(text, 64, 8)
	require.NoError(t, err)
	second, err := splitter.Split(text, 64, 8)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSplitter_New(t *testing.T) {
	s, err := splitter.New(100, splitter.DefaultOverlap(100))
	require.NoError(t, err)
	assert.Equal(t, 100, s.ChunkSize())
	assert.Equal(t, 10, s.Overlap())

	text := strings.Repeat("x", 250)
	expected, err := splitter.Split(text, 100, 10)
	require.NoError(t, err)
	assert.Equal(t, expected, s.Split(text))
}

func TestDefaultOverlap(t *testing.T) {
	assert.Equal(t, 100, splitter.DefaultOverlap(1000))
	assert.Equal(t, 5, splitter.DefaultOverlap(50))
	assert.Equal(t, 0, splitter.DefaultOverlap(9))
}

// reconstruct concatenates chunks, dropping the first overlap runes of every
// chunk after the first.
func reconstruct(chunks []string, overlap int) string {
	var b strings.Builder
	for i, chunk := range chunks {
		if i == 0 {
			b.WriteString(chunk)
			continue
		}
		b.WriteString(string([]rune(chunk)[overlap:]))
	}
	return b.String()
}
