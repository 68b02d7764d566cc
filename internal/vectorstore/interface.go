// Package vectorstore persists chunk embeddings in named collections and
// answers nearest-neighbour queries over them.
//
// Two backends implement Store: chromem-go, embedded and persisted to disk,
// and Qdrant over gRPC. Both report Distance as 1 - cosine similarity, so
// lower is closer regardless of backend.
package vectorstore

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/docrag/internal/document"
)

// ErrCollectionNotFound is returned when a collection does not exist. It is
// always joined with errs.ErrVectorStore.
var ErrCollectionNotFound = errors.New("collection not found")

// Record is a document with its embedding.
type Record struct {
	document.Document
	Embedding []float32
}

// QueryResult is one hit of a collection query.
type QueryResult struct {
	ID       string
	Text     string
	Distance float32
	Metadata document.Metadata
}

// CollectionInfo names a collection and its record count.
type CollectionInfo struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

// Store is the vector storage contract shared by every backend.
type Store interface {
	// CreateOrGet ensures the collection exists.
	CreateOrGet(ctx context.Context, name string) error
	// Add upserts records by ID into an existing collection.
	Add(ctx context.Context, name string, records []Record) error
	// Query returns up to limit records nearest to vector, closest first.
	Query(ctx context.Context, name string, vector []float32, limit int) ([]QueryResult, error)
	// ListCollections returns every collection sorted by name.
	ListCollections(ctx context.Context) ([]CollectionInfo, error)
	// Peek returns up to n records ordered by file path then chunk index.
	// n <= 0 returns all records.
	Peek(ctx context.Context, name string, n int) ([]Record, error)
	Close() error
}
