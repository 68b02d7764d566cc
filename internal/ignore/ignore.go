// Package ignore reads gitignore-style exclude files into the glob patterns
// the ingestion walk matches relative paths against.
//
// Supported syntax: blank lines and # comments, a leading / anchoring the
// pattern at the root, a trailing / restricting it to directories, and \# or
// \! escapes. Negations (!pattern) are not supported and are dropped.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Parser reads ignore files from an ingestion root.
type Parser struct {
	// Files are the ignore file names looked up at the root, in order.
	Files []string
}

// NewParser creates a parser for the given ignore file names.
func NewParser(files ...string) *Parser {
	return &Parser{Files: files}
}

// ParseProject returns the combined, deduplicated patterns of every ignore
// file present under root. Missing files are not an error.
func (p *Parser) ParseProject(root string) ([]string, error) {
	var patterns []string
	for _, name := range p.Files {
		f, err := os.Open(filepath.Join(root, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		filePatterns, err := Parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		patterns = append(patterns, filePatterns...)
	}
	return dedupe(patterns), nil
}

// Parse reads one ignore file.
func Parse(r io.Reader) ([]string, error) {
	var patterns []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		patterns = append(patterns, parseLine(scanner.Text())...)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return patterns, nil
}

// parseLine converts one line into zero or more glob patterns.
func parseLine(line string) []string {
	line = strings.TrimRight(line, " \t\r")
	switch {
	case line == "", strings.HasPrefix(line, "#"), strings.HasPrefix(line, "!"):
		return nil
	case strings.HasPrefix(line, `\#`), strings.HasPrefix(line, `\!`):
		line = line[1:]
	}

	dirOnly := strings.HasSuffix(line, "/")
	line = strings.TrimSuffix(line, "/")
	anchored := strings.HasPrefix(line, "/") || strings.Contains(line, "/")
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return nil
	}

	if anchored || strings.HasPrefix(line, "**/") {
		if dirOnly {
			return []string{line + "/**"}
		}
		return []string{line, line + "/**"}
	}
	if dirOnly {
		return []string{"**/" + line + "/**"}
	}
	// A bare name matches files by base name and directories at any depth.
	return []string{line, "**/" + line + "/**"}
}

func dedupe(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
