package vectorstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/errs"
)

// New opens the backend selected by cfg.Provider. dimension is the embedding
// size and fixes the vector size of every collection the store creates.
func New(ctx context.Context, cfg config.VectorStoreConfig, dimension int, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("backend", cfg.Provider))

	switch cfg.Provider {
	case "", backendChromem:
		return NewChromemStore(ChromemConfig{
			Path:      cfg.Chromem.Path,
			Compress:  cfg.Chromem.Compress,
			Dimension: dimension,
		}, logger)
	case backendQdrant:
		return NewQdrantStore(ctx, QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			UseTLS:     cfg.Qdrant.UseTLS,
			APIKey:     cfg.Qdrant.APIKey.Value(),
			Dimension:  dimension,
			Timeout:    cfg.Qdrant.Timeout.Duration(),
			MaxRetries: cfg.Qdrant.MaxRetries,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: unknown vector store provider %q", errs.ErrInvalidConfiguration, cfg.Provider)
	}
}
