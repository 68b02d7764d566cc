package services

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/generation"
	"github.com/fyrsmithlabs/docrag/internal/prompt"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
)

const instrumentationName = "github.com/fyrsmithlabs/docrag/internal/services"

// Searcher finds passages for a query.
type Searcher interface {
	Search(ctx context.Context, query string, collections []string, limit int) ([]retrieval.Passage, error)
	SearchAll(ctx context.Context, query string, limit int) ([]retrieval.Passage, error)
}

// Answer is a grounded answer and the passages it was conditioned on.
type Answer struct {
	Answer   string              `json:"answer" yaml:"answer"`
	Passages []retrieval.Passage `json:"passages" yaml:"passages"`
	// Refused is set when no passage was found and generation was skipped.
	Refused bool `json:"refused" yaml:"refused"`
}

// Answerer runs retrieve, prompt and generate.
type Answerer struct {
	searcher  Searcher
	builder   *prompt.Builder
	generator generation.Generator
	logger    *zap.Logger
}

// NewAnswerer creates an Answerer. A nil builder renders English prompts.
func NewAnswerer(searcher Searcher, builder *prompt.Builder, generator generation.Generator, logger *zap.Logger) *Answerer {
	if builder == nil {
		builder = prompt.NewBuilder(prompt.LanguageEnglish)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Answerer{
		searcher:  searcher,
		builder:   builder,
		generator: generator,
		logger:    logger,
	}
}

// Search retrieves passages from collections, or from every collection
// when none are named.
func (a *Answerer) Search(ctx context.Context, query string, collections []string, limit int) ([]retrieval.Passage, error) {
	if len(collections) == 0 {
		return a.searcher.SearchAll(ctx, query, limit)
	}
	return a.searcher.Search(ctx, query, collections, limit)
}

// Ask answers question from the retrieved passages. Generation errors are
// returned as is.
func (a *Answerer) Ask(ctx context.Context, question string, collections []string, limit int) (*Answer, error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "services.ask")
	defer span.End()

	passages, err := a.Search(ctx, question, collections, limit)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("passages", len(passages)))

	if len(passages) == 0 {
		a.logger.Debug("no passages found, refusing", zap.String("question", question))
		return &Answer{Answer: a.builder.Refusal(), Passages: passages, Refused: true}, nil
	}

	text, err := a.generator.Complete(ctx, a.builder.Build(question, retrieval.Texts(passages)))
	if err != nil {
		return nil, fmt.Errorf("answering question: %w", err)
	}
	return &Answer{Answer: text, Passages: passages}, nil
}
