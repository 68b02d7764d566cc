// Package app wires configuration into the docrag services.
//
// New builds every backend once, in dependency order, and Close releases them
// in reverse. Commands in cmd/docrag create one App per invocation.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/events"
	"github.com/fyrsmithlabs/docrag/internal/extract"
	"github.com/fyrsmithlabs/docrag/internal/generation"
	"github.com/fyrsmithlabs/docrag/internal/ingest"
	"github.com/fyrsmithlabs/docrag/internal/manifest"
	"github.com/fyrsmithlabs/docrag/internal/prompt"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/services"
	"github.com/fyrsmithlabs/docrag/internal/telemetry"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// Overrides replaces backends that New would otherwise build from config.
// Nil fields are built normally.
type Overrides struct {
	Embedder  embeddings.Provider
	Store     vectorstore.Store
	Generator generation.Generator
	Publisher events.Publisher
	// Telemetry is owned by the caller, which shuts it down after Close.
	Telemetry *telemetry.Telemetry
}

// App holds the wired services of one docrag process.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Telemetry *telemetry.Telemetry
	Embedder  embeddings.Provider
	Store     vectorstore.Store
	Manifest  *manifest.Store
	Publisher events.Publisher
	Services  services.Registry

	closers []func(context.Context) error
}

// New builds the application. On error every backend opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, version string, ov Overrides) (a *App, err error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
			a = nil
		}
	}()

	a.Telemetry = ov.Telemetry
	if a.Telemetry == nil {
		tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry, version), logger.Named("telemetry"))
		if err != nil {
			return nil, err
		}
		a.Telemetry = tel
		a.onClose(tel.Shutdown)
	}

	a.Embedder = ov.Embedder
	if a.Embedder == nil {
		a.Embedder, err = embeddings.NewProvider(embeddings.ConfigFrom(cfg.Embeddings, logger.Named("embeddings")))
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding provider: %w", err)
		}
		a.onClose(func(context.Context) error { return a.Embedder.Close() })
	}

	a.Store = ov.Store
	if a.Store == nil {
		a.Store, err = vectorstore.New(ctx, cfg.VectorStore, a.Embedder.Dimension(), logger.Named("vectorstore"))
		if err != nil {
			return nil, fmt.Errorf("failed to open vector store: %w", err)
		}
		a.onClose(func(context.Context) error { return a.Store.Close() })
	}

	if cfg.Ingest.ManifestPath != "" {
		path, perr := vectorstore.ExpandPath(cfg.Ingest.ManifestPath)
		if perr != nil {
			return nil, perr
		}
		a.Manifest, err = manifest.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open manifest: %w", err)
		}
		a.onClose(func(context.Context) error { return a.Manifest.Close() })
	}

	a.Publisher = ov.Publisher
	if a.Publisher == nil {
		a.Publisher, err = newPublisher(cfg.Events, logger.Named("events"))
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return a.Publisher.Close() })
	}

	gen := ov.Generator
	if gen == nil {
		gen, err = generation.New(cfg.Generation, logger.Named("generation"))
		if err != nil {
			return nil, fmt.Errorf("failed to create generator: %w", err)
		}
	}

	lang, err := prompt.ParseLanguage(cfg.Prompt.Language)
	if err != nil {
		return nil, err
	}

	opts := []ingest.Option{
		ingest.WithLogger(logger.Named("ingest")),
		ingest.WithPublisher(a.Publisher),
	}
	if a.Manifest != nil {
		opts = append(opts, ingest.WithManifest(a.Manifest))
	}
	orch, err := ingest.New(
		ingest.ConfigFrom(cfg.Ingest, cfg.Embeddings),
		extract.New(cfg.Extract, extract.WithLogger(logger.Named("extract"))),
		a.Embedder,
		a.Store,
		opts...,
	)
	if err != nil {
		return nil, err
	}

	agg, err := retrieval.NewFromConfig(cfg.Retrieval, a.Embedder, a.Store, logger.Named("retrieval"))
	if err != nil {
		return nil, err
	}

	a.Services = services.NewRegistry(services.Options{
		Ingest:      orch,
		Retrieval:   agg,
		Answers:     services.NewAnswerer(agg, prompt.NewBuilder(lang), gen, logger.Named("answers")),
		VectorStore: a.Store,
	})

	logger.Debug("app initialized",
		zap.String("embeddings", cfg.Embeddings.Provider),
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.Bool("manifest", a.Manifest != nil),
		zap.Bool("events", cfg.Events.NATSURL != ""),
	)
	return a, nil
}

func newPublisher(cfg config.EventsConfig, logger *zap.Logger) (events.Publisher, error) {
	if cfg.NATSURL == "" {
		return events.Noop{}, nil
	}
	p, err := events.Connect(cfg.NATSURL, cfg.SubjectPrefix, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
	}
	return p, nil
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases backends in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errList []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errList = append(errList, err)
		}
	}
	a.closers = nil
	return errors.Join(errList...)
}
