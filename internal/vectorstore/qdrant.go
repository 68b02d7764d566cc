package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/docrag/internal/collections"
	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/errs"
)

const (
	backendQdrant = "qdrant"

	payloadID      = "id"
	payloadContent = "content"
)

// QdrantConfig configures the Qdrant gRPC client.
type QdrantConfig struct {
	Host   string
	Port   int // gRPC port, not the REST port
	UseTLS bool
	APIKey string
	// Dimension is the vector size of newly created collections.
	Dimension int
	// Timeout bounds each call, including retries.
	Timeout        time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate checks the configuration.
func (c QdrantConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid qdrant port %d", errs.ErrInvalidConfiguration, c.Port)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: qdrant dimension must be positive, got %d", errs.ErrInvalidConfiguration, c.Dimension)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: qdrant max_retries must be >= 0", errs.ErrInvalidConfiguration)
	}
	return nil
}

// QdrantStore implements Store over Qdrant's native gRPC API.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig
	logger *zap.Logger
}

// NewQdrantStore connects and health-checks the server. An unreachable
// server is a startup failure.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.UseTLS && cfg.APIKey != "" {
		logger.Warn("qdrant api key sent over plaintext gRPC; enable use_tls")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant at %s:%d: %w", errs.ErrVectorStore, cfg.Host, cfg.Port, err)
	}

	s := &QdrantStore{client: client, config: cfg, logger: logger}

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(hctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: qdrant health check at %s:%d: %w", errs.ErrVectorStore, cfg.Host, cfg.Port, err)
	}

	return s, nil
}

// PointID maps a document ID to the deterministic UUID Qdrant requires, so
// re-adding a document overwrites it.
func PointID(docID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(docID)).String()
}

// IsTransientError reports whether a gRPC error is worth retrying.
func IsTransientError(err error) bool {
	st, ok := status.FromError(err)
	if !ok || err == nil {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

func isNotFound(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == grpccodes.NotFound
}

// retry runs fn until it succeeds, fails permanently, or maxRetries
// transient failures have been retried. Backoff doubles after each attempt.
func retry(ctx context.Context, maxRetries int, backoff time.Duration, fn func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil || !IsTransientError(err) || attempt >= maxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

func (s *QdrantStore) call(ctx context.Context, fn func(context.Context) error) error {
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}
	return retry(ctx, s.config.MaxRetries, s.config.RetryBackoff, fn)
}

// CreateOrGet creates a cosine collection of the configured dimension if missing.
func (s *QdrantStore) CreateOrGet(ctx context.Context, name string) error {
	ctx, op := startOperation(ctx, backendQdrant, "create_or_get", attribute.String("collection", name))

	if err := collections.Validate(name); err != nil {
		return op.end(fmt.Errorf("%w: %w", errs.ErrVectorStore, err))
	}

	var exists bool
	err := s.call(ctx, func(ctx context.Context) (err error) {
		exists, err = s.client.CollectionExists(ctx, name)
		return err
	})
	if err != nil {
		return op.end(fmt.Errorf("%w: checking collection %s: %w", errs.ErrVectorStore, name, err))
	}
	if exists {
		return op.end(nil)
	}

	err = s.call(ctx, func(ctx context.Context) error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.config.Dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
	})
	if st, ok := status.FromError(err); ok && st.Code() == grpccodes.AlreadyExists {
		err = nil
	}
	if err != nil {
		return op.end(fmt.Errorf("%w: creating collection %s: %w", errs.ErrVectorStore, name, err))
	}

	s.logger.Info("created qdrant collection", zap.String("collection", name), zap.Int("dimension", s.config.Dimension))
	return op.end(nil)
}

// Add upserts records and waits for the write to be applied.
func (s *QdrantStore) Add(ctx context.Context, name string, records []Record) error {
	ctx, op := startOperation(ctx, backendQdrant, "add",
		attribute.String("collection", name),
		attribute.Int("records", len(records)),
	)

	if len(records) == 0 {
		return op.end(nil)
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		if len(r.Embedding) != s.config.Dimension {
			return op.end(fmt.Errorf("%w: record %s has %d dimensions, want %d",
				errs.ErrVectorStore, r.ID, len(r.Embedding), s.config.Dimension))
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(r.ID)),
			Vectors: qdrant.NewVectors(r.Embedding...),
			Payload: encodePayload(r.Document),
		}
	}

	err := s.call(ctx, func(ctx context.Context) error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: name,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return err
	})
	if err != nil {
		return op.end(s.wrap(name, "upserting points", err))
	}
	return op.end(nil)
}

// Query returns the nearest points, closest first.
func (s *QdrantStore) Query(ctx context.Context, name string, vector []float32, limit int) ([]QueryResult, error) {
	ctx, op := startOperation(ctx, backendQdrant, "query",
		attribute.String("collection", name),
		attribute.Int("limit", limit),
	)

	if limit <= 0 {
		return []QueryResult{}, op.end(nil)
	}

	var points []*qdrant.ScoredPoint
	err := s.call(ctx, func(ctx context.Context) (err error) {
		points, err = s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: name,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(limit)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		return err
	})
	if err != nil {
		return nil, op.end(s.wrap(name, "querying", err))
	}

	results := make([]QueryResult, len(points))
	for i, p := range points {
		doc := s.decodePayload(p.GetPayload())
		results[i] = QueryResult{
			ID:       doc.ID,
			Text:     doc.Content,
			Distance: 1 - p.GetScore(),
			Metadata: doc.Metadata,
		}
	}
	return results, op.end(nil)
}

// ListCollections returns every collection with its exact point count.
func (s *QdrantStore) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	ctx, op := startOperation(ctx, backendQdrant, "list_collections")

	var names []string
	err := s.call(ctx, func(ctx context.Context) (err error) {
		names, err = s.client.ListCollections(ctx)
		return err
	})
	if err != nil {
		return nil, op.end(fmt.Errorf("%w: listing collections: %w", errs.ErrVectorStore, err))
	}

	infos := make([]CollectionInfo, 0, len(names))
	for _, name := range names {
		count, err := s.count(ctx, name)
		if err != nil {
			return nil, op.end(err)
		}
		infos = append(infos, CollectionInfo{Name: name, Count: count})
	}
	sortInfos(infos)
	return infos, op.end(nil)
}

func (s *QdrantStore) count(ctx context.Context, name string) (int, error) {
	var n uint64
	err := s.call(ctx, func(ctx context.Context) (err error) {
		n, err = s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: name,
			Exact:          qdrant.PtrOf(true),
		})
		return err
	})
	if err != nil {
		return 0, s.wrap(name, "counting points", err)
	}
	return int(n), nil
}

// Peek scrolls the collection and returns records in chunk order.
func (s *QdrantStore) Peek(ctx context.Context, name string, n int) ([]Record, error) {
	ctx, op := startOperation(ctx, backendQdrant, "peek",
		attribute.String("collection", name),
		attribute.Int("n", n),
	)

	total, err := s.count(ctx, name)
	if err != nil {
		return nil, op.end(err)
	}
	if total == 0 {
		return []Record{}, op.end(nil)
	}

	var points []*qdrant.RetrievedPoint
	err = s.call(ctx, func(ctx context.Context) (err error) {
		points, err = s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: name,
			Limit:          qdrant.PtrOf(uint32(total)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		return err
	})
	if err != nil {
		return nil, op.end(s.wrap(name, "scrolling", err))
	}

	records := make([]Record, len(points))
	for i, p := range points {
		records[i] = Record{Document: s.decodePayload(p.GetPayload())}
	}
	sortRecords(records)
	if n > 0 && n < len(records) {
		records = records[:n]
	}
	return records, op.end(nil)
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *QdrantStore) wrap(name, what string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%w: %w: %s", errs.ErrVectorStore, ErrCollectionNotFound, name)
	}
	return fmt.Errorf("%w: %s %s: %w", errs.ErrVectorStore, what, name, err)
}

func encodePayload(doc document.Document) map[string]*qdrant.Value {
	payload := map[string]*qdrant.Value{
		payloadID:      {Kind: &qdrant.Value_StringValue{StringValue: doc.ID}},
		payloadContent: {Kind: &qdrant.Value_StringValue{StringValue: doc.Content}},
	}
	for k, v := range doc.Metadata.ToMap() {
		switch val := v.(type) {
		case string:
			payload[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
		case int:
			payload[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
		case int64:
			payload[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
		}
	}
	return payload
}

func (s *QdrantStore) decodePayload(payload map[string]*qdrant.Value) document.Document {
	values := make(map[string]any, len(payload))
	for k, v := range payload {
		switch val := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			values[k] = val.StringValue
		case *qdrant.Value_IntegerValue:
			values[k] = val.IntegerValue
		case *qdrant.Value_DoubleValue:
			values[k] = val.DoubleValue
		}
	}

	doc := document.Document{}
	doc.ID, _ = values[payloadID].(string)
	doc.Content, _ = values[payloadContent].(string)
	md, err := document.MetadataFromMap(values)
	if err != nil {
		s.logger.Warn("stored payload unreadable", zap.String("id", doc.ID), zap.Error(err))
	}
	doc.Metadata = md
	return doc
}
