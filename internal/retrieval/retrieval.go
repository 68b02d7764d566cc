// Package retrieval searches several collections with one query and merges
// the hits into a single ranked, deduplicated list of passages.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/document"
	"github.com/fyrsmithlabs/docrag/internal/errs"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

const instrumentationName = "github.com/fyrsmithlabs/docrag/internal/retrieval"

// Order selects how merged passages are ranked.
type Order string

const (
	// OrderDistance ranks by ascending distance, closest first.
	OrderDistance Order = "distance"
	// OrderLexical sorts by passage text, ignoring distance.
	OrderLexical Order = "lexical"
)

// ParseOrder parses an order name; "" means OrderDistance.
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case "", OrderDistance:
		return OrderDistance, nil
	case OrderLexical:
		return OrderLexical, nil
	default:
		return "", fmt.Errorf("%w: unknown retrieval order %q", errs.ErrInvalidConfiguration, s)
	}
}

// Passage is one merged search hit.
type Passage struct {
	Text       string            `json:"text" yaml:"text"`
	Distance   float32           `json:"distance" yaml:"distance"`
	Collection string            `json:"collection" yaml:"collection"`
	ID         string            `json:"id" yaml:"id"`
	Metadata   document.Metadata `json:"metadata" yaml:"metadata"`
}

// Texts returns the text of each passage.
func Texts(passages []Passage) []string {
	out := make([]string, len(passages))
	for i, p := range passages {
		out[i] = p.Text
	}
	return out
}

// QueryEmbedder embeds a search query.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Aggregator runs multi-collection searches.
type Aggregator struct {
	embedder    QueryEmbedder
	store       vectorstore.Store
	order       Order
	concurrency int
	logger      *zap.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithOrder sets the merge order.
func WithOrder(o Order) Option {
	return func(a *Aggregator) { a.order = o }
}

// WithConcurrency bounds concurrent collection searches.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Aggregator.
func New(embedder QueryEmbedder, store vectorstore.Store, opts ...Option) *Aggregator {
	a := &Aggregator{
		embedder:    embedder,
		store:       store,
		order:       OrderDistance,
		concurrency: 8,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewFromConfig creates an Aggregator from the retrieval section.
func NewFromConfig(cfg config.RetrievalConfig, embedder QueryEmbedder, store vectorstore.Store, logger *zap.Logger) (*Aggregator, error) {
	order, err := ParseOrder(cfg.Order)
	if err != nil {
		return nil, err
	}
	return New(embedder, store,
		WithOrder(order),
		WithConcurrency(cfg.Concurrency),
		WithLogger(logger),
	), nil
}

// Search embeds query once and returns at most limit passages from the
// given collections. A collection that fails contributes no passages.
func (a *Aggregator) Search(ctx context.Context, query string, collections []string, limit int) ([]Passage, error) {
	if len(collections) == 0 {
		return nil, fmt.Errorf("%w: at least one collection is required", errs.ErrInvalidConfiguration)
	}
	if limit <= 0 {
		return []Passage{}, nil
	}

	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "retrieval.search")
	defer span.End()
	span.SetAttributes(
		attribute.Int("collections", len(collections)),
		attribute.Int("limit", limit),
		attribute.String("order", string(a.order)),
	)

	vector, err := a.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: embedding query: %w", errs.ErrEmbeddingService, err)
	}

	results := make([][]Passage, len(collections))
	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, name := range collections {
		g.Go(func() error {
			hits, err := a.store.Query(ctx, name, vector, limit)
			if err != nil {
				a.logger.Warn("collection search failed",
					zap.String("collection", name),
					zap.Error(err),
				)
				return nil
			}
			passages := make([]Passage, len(hits))
			for j, h := range hits {
				passages[j] = Passage{
					Text:       h.Text,
					Distance:   h.Distance,
					Collection: name,
					ID:         h.ID,
					Metadata:   h.Metadata,
				}
			}
			results[i] = passages
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	merged := Merge(results, limit, a.order)
	span.SetAttributes(attribute.Int("passages", len(merged)))
	a.logger.Debug("search merged",
		zap.Int("collections", len(collections)),
		zap.Int("passages", len(merged)),
	)
	return merged, nil
}

// SearchAll searches every collection in the store.
func (a *Aggregator) SearchAll(ctx context.Context, query string, limit int) ([]Passage, error) {
	infos, err := a.store.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no collections to search; ingest documents first", errs.ErrInvalidConfiguration)
	}
	return a.Search(ctx, query, names, limit)
}

// Merge flattens per-collection results, keeps the closest occurrence of
// each distinct text, orders the survivors and truncates to limit.
func Merge(results [][]Passage, limit int, order Order) []Passage {
	best := make(map[string]Passage)
	for _, passages := range results {
		for _, p := range passages {
			cur, seen := best[p.Text]
			if !seen || closer(p, cur) {
				best[p.Text] = p
			}
		}
	}

	merged := make([]Passage, 0, len(best))
	for _, p := range best {
		merged = append(merged, p)
	}

	if order == OrderLexical {
		sort.Slice(merged, func(i, j int) bool { return merged[i].Text < merged[j].Text })
	} else {
		sort.Slice(merged, func(i, j int) bool { return closer(merged[i], merged[j]) })
	}

	if limit >= 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// closer orders by distance, then text, then collection.
func closer(a, b Passage) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	if a.Text != b.Text {
		return a.Text < b.Text
	}
	return a.Collection < b.Collection
}
