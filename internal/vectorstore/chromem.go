package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/collections"
	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/errs"
)

const backendChromem = "chromem"

// errPrecomputedOnly is returned if chromem ever asks docrag to embed text.
var errPrecomputedOnly = errors.New("chromem store accepts precomputed embeddings only")

// ChromemConfig configures the embedded store.
type ChromemConfig struct {
	// Path is the persistence directory; "~" is expanded. Empty keeps the
	// database in memory.
	Path     string
	Compress bool
	// Dimension is the embedding length; Peek needs it to scan a collection.
	Dimension int
}

// ChromemStore implements Store with chromem-go.
type ChromemStore struct {
	db        *chromem.DB
	dimension int
	logger    *zap.Logger
}

// NewChromemStore opens (or creates) the database at cfg.Path.
func NewChromemStore(cfg ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: chromem dimension must be positive, got %d", errs.ErrInvalidConfiguration, cfg.Dimension)
	}

	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		path, err := ExpandPath(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: expanding path: %w", errs.ErrVectorStore, err)
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating directory %s: %w", errs.ErrVectorStore, path, err)
		}
		db, err = chromem.NewPersistentDB(path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("%w: opening chromem db: %w", errs.ErrVectorStore, err)
		}
		logger.Debug("chromem store opened", zap.String("path", path), zap.Bool("compress", cfg.Compress))
	}

	return &ChromemStore{db: db, dimension: cfg.Dimension, logger: logger}, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// embeddingFunc must be passed to chromem for persisted collections, which
// would otherwise default to OpenAI.
func embeddingFunc(context.Context, string) ([]float32, error) {
	return nil, errPrecomputedOnly
}

func (s *ChromemStore) collection(name string) (*chromem.Collection, error) {
	c := s.db.GetCollection(name, embeddingFunc)
	if c == nil {
		return nil, fmt.Errorf("%w: %w: %s", errs.ErrVectorStore, ErrCollectionNotFound, name)
	}
	return c, nil
}

// CreateOrGet ensures the collection exists.
func (s *ChromemStore) CreateOrGet(ctx context.Context, name string) error {
	_, op := startOperation(ctx, backendChromem, "create_or_get", attribute.String("collection", name))

	if err := collections.Validate(name); err != nil {
		return op.end(fmt.Errorf("%w: %w", errs.ErrVectorStore, err))
	}
	if _, err := s.db.GetOrCreateCollection(name, nil, embeddingFunc); err != nil {
		return op.end(fmt.Errorf("%w: creating collection %s: %w", errs.ErrVectorStore, name, err))
	}
	return op.end(nil)
}

// Add upserts records into the collection.
func (s *ChromemStore) Add(ctx context.Context, name string, records []Record) error {
	ctx, op := startOperation(ctx, backendChromem, "add",
		attribute.String("collection", name),
		attribute.Int("records", len(records)),
	)

	if len(records) == 0 {
		return op.end(nil)
	}
	c, err := s.collection(name)
	if err != nil {
		return op.end(err)
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		if len(r.Embedding) != s.dimension {
			return op.end(fmt.Errorf("%w: record %s has %d dimensions, want %d",
				errs.ErrVectorStore, r.ID, len(r.Embedding), s.dimension))
		}
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Content,
			Metadata:  r.Metadata.ToStringMap(),
			Embedding: r.Embedding,
		}
	}

	// Embeddings are precomputed, so a single goroutine suffices.
	if err := c.AddDocuments(ctx, docs, 1); err != nil {
		return op.end(fmt.Errorf("%w: adding %d documents to %s: %w", errs.ErrVectorStore, len(docs), name, err))
	}
	return op.end(nil)
}

// Query returns the nearest records. limit is clamped to the collection size.
func (s *ChromemStore) Query(ctx context.Context, name string, vector []float32, limit int) ([]QueryResult, error) {
	ctx, op := startOperation(ctx, backendChromem, "query",
		attribute.String("collection", name),
		attribute.Int("limit", limit),
	)

	if limit <= 0 {
		return []QueryResult{}, op.end(nil)
	}
	c, err := s.collection(name)
	if err != nil {
		return nil, op.end(err)
	}
	count := c.Count()
	if count == 0 {
		return []QueryResult{}, op.end(nil)
	}

	hits, err := c.QueryEmbedding(ctx, vector, min(limit, count), nil, nil)
	if err != nil {
		return nil, op.end(fmt.Errorf("%w: querying %s: %w", errs.ErrVectorStore, name, err))
	}

	results := make([]QueryResult, len(hits))
	for i, h := range hits {
		results[i] = QueryResult{
			ID:       h.ID,
			Text:     h.Content,
			Distance: 1 - h.Similarity,
			Metadata: s.decodeMetadata(h.ID, h.Metadata),
		}
	}
	return results, op.end(nil)
}

func (s *ChromemStore) decodeMetadata(id string, raw map[string]string) document.Metadata {
	md, err := document.MetadataFromStringMap(raw)
	if err != nil {
		s.logger.Warn("stored metadata unreadable", zap.String("id", id), zap.Error(err))
	}
	return md
}

// ListCollections returns every collection sorted by name.
func (s *ChromemStore) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	_, op := startOperation(ctx, backendChromem, "list_collections")

	all := s.db.ListCollections()
	infos := make([]CollectionInfo, 0, len(all))
	for name, c := range all {
		infos = append(infos, CollectionInfo{Name: name, Count: c.Count()})
	}
	sortInfos(infos)
	return infos, op.end(nil)
}

// Peek returns records in chunk order. chromem has no scan API, so the whole
// collection is read through a similarity query against a basis vector.
func (s *ChromemStore) Peek(ctx context.Context, name string, n int) ([]Record, error) {
	ctx, op := startOperation(ctx, backendChromem, "peek",
		attribute.String("collection", name),
		attribute.Int("n", n),
	)

	c, err := s.collection(name)
	if err != nil {
		return nil, op.end(err)
	}
	count := c.Count()
	if count == 0 {
		return []Record{}, op.end(nil)
	}

	basis := make([]float32, s.dimension)
	basis[0] = 1
	hits, err := c.QueryEmbedding(ctx, basis, count, nil, nil)
	if err != nil {
		return nil, op.end(fmt.Errorf("%w: scanning %s: %w", errs.ErrVectorStore, name, err))
	}

	records := make([]Record, len(hits))
	for i, h := range hits {
		records[i] = Record{
			Document: document.Document{
				ID:       h.ID,
				Content:  h.Content,
				Metadata: s.decodeMetadata(h.ID, h.Metadata),
			},
			Embedding: h.Embedding,
		}
	}
	sortRecords(records)
	if n > 0 && n < len(records) {
		records = records[:n]
	}
	return records, op.end(nil)
}

// Close is a no-op; chromem persists on every write.
func (s *ChromemStore) Close() error {
	return nil
}

func sortInfos(infos []CollectionInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
}

// sortRecords orders records by file path, then chunk index, then ID.
func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i].Metadata, records[j].Metadata
		if a.File.Path != b.File.Path {
			return a.File.Path < b.File.Path
		}
		if a.Chunk.Index != b.Chunk.Index {
			return a.Chunk.Index < b.Chunk.Index
		}
		return records[i].ID < records[j].ID
	})
}
