// Package collections maps source files to the logical collections their
// chunks are stored in.
//
// Collection names are derived from the first two directories of a file's
// path relative to the ingestion root, so chunks are grouped by project and
// subproject rather than by file:
//
//	collections.NameFor("sample.txt")                 // "root"
//	collections.NameFor("pj1/sample.pdf")             // "pj1"
//	collections.NameFor("pj1/dir1/sample.txt")        // "pj1-dir1"
//	collections.NameFor("pj1/dir1/dir2/sample.txt")   // "pj1-dir1"
package collections

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const (
	// RootName is the collection for files directly under the ingestion root.
	RootName = "root"

	// Separator joins the two leading path segments of a nested file.
	Separator = "-"

	// MaxNameLength is the longest collection name accepted by Validate, in bytes.
	MaxNameLength = 255
)

// ErrInvalidCollectionName indicates a name that cannot be used as a collection.
var ErrInvalidCollectionName = errors.New("invalid collection name")

// NameFor returns the collection name for a path relative to the ingestion root.
//
// The policy depends on the number of path separators:
//   - 0: RootName
//   - 1: the first path segment
//   - 2 or more: the first two segments joined by Separator
//
// Deeper nesting collapses onto the same two-segment name.
func NameFor(relativePath string) string {
	p := strings.TrimPrefix(filepath.ToSlash(relativePath), "./")

	segments := strings.Split(p, "/")
	switch len(segments) {
	case 1:
		return RootName
	case 2:
		return segments[0]
	default:
		return segments[0] + Separator + segments[1]
	}
}

// Validate checks that name is usable as a collection name by the vector stores.
func Validate(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name required", ErrInvalidCollectionName)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d bytes", ErrInvalidCollectionName, MaxNameLength)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: name is not valid UTF-8", ErrInvalidCollectionName)
	}
	if strings.Contains(name, "/") || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q contains a path separator or '..'", ErrInvalidCollectionName, name)
	}
	return nil
}
