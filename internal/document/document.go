// Package document defines the chunk record stored for every piece of an
// ingested file, and the metadata envelope persisted alongside its vector.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"time"
)

// Persisted metadata keys.
const (
	KeyFilePath      = "file_path"
	KeyFileCreatedAt = "file_created_at"
	KeyFileUpdatedAt = "file_updated_at"
	KeyChunkIndex    = "chunk_index"
)

// ErrInvalidMetadata indicates a stored metadata map that cannot be decoded.
var ErrInvalidMetadata = errors.New("invalid document metadata")

// Document is one chunk of a source file.
type Document struct {
	ID       string   `json:"id" yaml:"id"`
	Content  string   `json:"content" yaml:"content"`
	Metadata Metadata `json:"metadata" yaml:"metadata"`
}

// Metadata records where a chunk came from.
type Metadata struct {
	File  FileInfo  `json:"file" yaml:"file"`
	Chunk ChunkInfo `json:"chunk" yaml:"chunk"`
}

// FileInfo describes the source file. Path is relative to the ingestion root.
type FileInfo struct {
	Path      string    `json:"path" yaml:"path"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// ChunkInfo locates a chunk within its file's chunk sequence.
type ChunkInfo struct {
	Index int `json:"index" yaml:"index"`
}

// NewID returns the stable identifier for chunk index of relPath.
func NewID(relPath string, index int) string {
	return filepath.ToSlash(relPath) + "-" + strconv.Itoa(index)
}

// New builds the document for one chunk of a file.
func New(relPath string, index int, content string, created, updated time.Time) Document {
	p := filepath.ToSlash(relPath)
	return Document{
		ID:      NewID(p, index),
		Content: content,
		Metadata: Metadata{
			File: FileInfo{
				Path:      p,
				CreatedAt: created,
				UpdatedAt: updated,
			},
			Chunk: ChunkInfo{Index: index},
		},
	}
}

// FromChunks builds one document per chunk with sequential indexes.
func FromChunks(relPath string, chunks []string, created, updated time.Time) []Document {
	docs := make([]Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = New(relPath, i, chunk, created, updated)
	}
	return docs
}

// ToMap encodes metadata with the fixed persisted keys. Timestamps are epoch seconds.
func (m Metadata) ToMap() map[string]any {
	return map[string]any{
		KeyFilePath:      m.File.Path,
		KeyFileCreatedAt: m.File.CreatedAt.Unix(),
		KeyFileUpdatedAt: m.File.UpdatedAt.Unix(),
		KeyChunkIndex:    m.Chunk.Index,
	}
}

// ToStringMap encodes metadata for stores that only keep string values.
func (m Metadata) ToStringMap() map[string]string {
	return map[string]string{
		KeyFilePath:      m.File.Path,
		KeyFileCreatedAt: strconv.FormatInt(m.File.CreatedAt.Unix(), 10),
		KeyFileUpdatedAt: strconv.FormatInt(m.File.UpdatedAt.Unix(), 10),
		KeyChunkIndex:    strconv.Itoa(m.Chunk.Index),
	}
}

// MetadataFromMap decodes a map produced by ToMap, after it went through a
// store. Numeric values may come back as any integer or float kind, as
// json.Number, or as decimal strings.
func MetadataFromMap(values map[string]any) (Metadata, error) {
	var m Metadata

	path, ok := values[KeyFilePath].(string)
	if !ok {
		return m, fmt.Errorf("%w: %s missing or not a string", ErrInvalidMetadata, KeyFilePath)
	}
	created, err := int64Value(values, KeyFileCreatedAt)
	if err != nil {
		return m, err
	}
	updated, err := int64Value(values, KeyFileUpdatedAt)
	if err != nil {
		return m, err
	}
	index, err := int64Value(values, KeyChunkIndex)
	if err != nil {
		return m, err
	}
	if index < 0 || index > math.MaxInt32 {
		return m, fmt.Errorf("%w: %s out of range: %d", ErrInvalidMetadata, KeyChunkIndex, index)
	}

	m.File = FileInfo{
		Path:      path,
		CreatedAt: time.Unix(created, 0),
		UpdatedAt: time.Unix(updated, 0),
	}
	m.Chunk = ChunkInfo{Index: int(index)}
	return m, nil
}

// MetadataFromStringMap decodes a map produced by ToStringMap.
func MetadataFromStringMap(values map[string]string) (Metadata, error) {
	generic := make(map[string]any, len(values))
	for k, v := range values {
		generic[k] = v
	}
	return MetadataFromMap(generic)
}

func int64Value(values map[string]any, key string) (int64, error) {
	raw, ok := values[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s missing", ErrInvalidMetadata, key)
	}

	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %s overflows int64", ErrInvalidMetadata, key)
		}
		return int64(v), nil
	case float32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrInvalidMetadata, key, err)
		}
		return n, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrInvalidMetadata, key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %s has unsupported type %T", ErrInvalidMetadata, key, raw)
	}
}
