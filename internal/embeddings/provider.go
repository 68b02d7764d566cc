package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/errs"
)

// ErrEmptyInput indicates empty or nil input texts.
var ErrEmptyInput = errors.New("empty or nil input texts")

// Provider generates embeddings.
type Provider interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the vector length the provider produces.
	Dimension() int
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	Provider  string // ollama, openai, fastembed
	Model     string
	BaseURL   string
	APIKey    config.Secret
	Dimension int
	Timeout   time.Duration
	CacheDir  string
	Logger    *zap.Logger
}

// ConfigFrom maps the embeddings config section.
func ConfigFrom(c config.EmbeddingsConfig, logger *zap.Logger) ProviderConfig {
	return ProviderConfig{
		Provider:  c.Provider,
		Model:     c.Model,
		BaseURL:   c.BaseURL,
		APIKey:    c.APIKey,
		Dimension: c.Dimension,
		Timeout:   c.Timeout.Duration(),
		CacheDir:  c.CacheDir,
		Logger:    logger,
	}
}

// NewProvider creates the provider named by cfg.Provider.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	switch cfg.Provider {
	case "ollama", "":
		llm, err := ollama.New(
			ollama.WithModel(cfg.Model),
			ollama.WithServerURL(cfg.BaseURL),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: creating ollama client: %w", errs.ErrEmbeddingService, err)
		}
		embedder, err := lcembeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("%w: creating embedder: %w", errs.ErrEmbeddingService, err)
		}
		return newLangchainProvider(embedder, cfg), nil

	case "openai":
		token := cfg.APIKey.Value()
		if token == "" {
			// langchaingo requires a token; local compatible servers ignore it.
			token = "placeholder"
		}
		opts := []openai.Option{
			openai.WithModel(cfg.Model),
			openai.WithEmbeddingModel(cfg.Model),
			openai.WithToken(token),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: creating openai client: %w", errs.ErrEmbeddingService, err)
		}
		embedder, err := lcembeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("%w: creating embedder: %w", errs.ErrEmbeddingService, err)
		}
		return newLangchainProvider(embedder, cfg), nil

	case "fastembed":
		p, err := NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrEmbeddingService, err)
		}
		return p, nil

	default:
		return nil, fmt.Errorf("%w: unknown embeddings provider %q", errs.ErrInvalidConfiguration, cfg.Provider)
	}
}

// langchainProvider adapts a langchaingo embedder with timeouts, dimension
// checks and metrics.
type langchainProvider struct {
	embedder  lcembeddings.Embedder
	model     string
	dimension int
	timeout   time.Duration
	metrics   *Metrics
}

func newLangchainProvider(embedder lcembeddings.Embedder, cfg ProviderConfig) *langchainProvider {
	return &langchainProvider{
		embedder:  embedder,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		timeout:   cfg.Timeout,
		metrics:   NewMetrics(cfg.Logger),
	}
}

func (p *langchainProvider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.timeout)
}

// EmbedDocuments returns one vector per text, in input order.
func (p *langchainProvider) EmbedDocuments(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	start := time.Now()
	defer func() {
		p.metrics.RecordGeneration(ctx, p.model, "embed_documents", time.Since(start), len(texts), err)
	}()

	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: %w", errs.ErrEmbeddingService, ErrEmptyInput)
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	vectors, err = p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding %d texts: %w", errs.ErrEmbeddingService, len(texts), err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", errs.ErrEmbeddingService, len(vectors), len(texts))
	}
	for _, v := range vectors {
		if err := p.checkDimension(v); err != nil {
			return nil, err
		}
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (p *langchainProvider) EmbedQuery(ctx context.Context, text string) (vector []float32, err error) {
	start := time.Now()
	defer func() {
		p.metrics.RecordGeneration(ctx, p.model, "embed_query", time.Since(start), 1, err)
	}()

	if text == "" {
		return nil, fmt.Errorf("%w: %w", errs.ErrEmbeddingService, ErrEmptyInput)
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	vector, err = p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", errs.ErrEmbeddingService, err)
	}
	if err := p.checkDimension(vector); err != nil {
		return nil, err
	}
	return vector, nil
}

func (p *langchainProvider) checkDimension(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty vector", errs.ErrEmbeddingService)
	}
	if p.dimension > 0 && len(v) != p.dimension {
		return fmt.Errorf("%w: model %s returned %d dimensions, configured %d",
			errs.ErrEmbeddingService, p.model, len(v), p.dimension)
	}
	return nil
}

// Dimension returns the configured dimension.
func (p *langchainProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op; the HTTP clients hold no resources.
func (p *langchainProvider) Close() error {
	return nil
}
