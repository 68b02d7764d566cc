// Package splitter turns raw text into ordered, overlapping chunks.
//
// Lengths are counted in runes, so a multi-byte character is never cut in half
// and never inflates the effective chunk length.
package splitter

import (
	"fmt"

	"github.com/fyrsmithlabs/docrag/internal/errs"
)

// Splitter holds a validated chunk size and overlap.
type Splitter struct {
	chunkSize int
	overlap   int
}

// New validates chunkSize and overlap and returns a reusable Splitter.
func New(chunkSize, overlap int) (*Splitter, error) {
	if err := validate(chunkSize, overlap); err != nil {
		return nil, err
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}, nil
}

// ChunkSize returns the window length in runes.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap returns the number of runes shared by adjacent chunks.
func (s *Splitter) Overlap() int { return s.overlap }

// Split splits text using the splitter's parameters.
func (s *Splitter) Split(text string) []string {
	return split([]rune(text), s.chunkSize, s.overlap)
}

// Split splits text into windows of chunkSize runes, each starting
// chunkSize-overlap runes after the previous one.
//
// Every chunk but the last has exactly chunkSize runes. The last chunk has
// between 1 and chunkSize runes. Empty text yields zero chunks.
func Split(text string, chunkSize, overlap int) ([]string, error) {
	if err := validate(chunkSize, overlap); err != nil {
		return nil, err
	}
	return split([]rune(text), chunkSize, overlap), nil
}

// DefaultOverlap is the overlap used for ingestion: a tenth of the chunk size.
func DefaultOverlap(chunkSize int) int {
	return chunkSize / 10
}

func validate(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be > 0, got %d", errs.ErrInvalidConfiguration, chunkSize)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: overlap must be >= 0, got %d", errs.ErrInvalidConfiguration, overlap)
	}
	if overlap >= chunkSize {
		return fmt.Errorf("%w: overlap (%d) must be smaller than chunk size (%d)",
			errs.ErrInvalidConfiguration, overlap, chunkSize)
	}
	return nil
}

func split(runes []rune, chunkSize, overlap int) []string {
	chunks := make([]string, 0, estimate(len(runes), chunkSize, overlap))
	step := chunkSize - overlap

	for start := 0; start < len(runes); start += step {
		end := min(start+chunkSize, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func estimate(n, chunkSize, overlap int) int {
	if n == 0 {
		return 0
	}
	if n <= chunkSize {
		return 1
	}
	step := chunkSize - overlap
	return (n-chunkSize+step-1)/step + 1
}
