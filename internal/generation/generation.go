// Package generation produces answers from a prompt through an LLM.
package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/errs"
)

const instrumentationName = "github.com/fyrsmithlabs/docrag/internal/generation"

// Generator completes a prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// LLMGenerator completes prompts with a langchaingo model.
type LLMGenerator struct {
	model       llms.Model
	name        string
	temperature float64
	timeout     time.Duration
	logger      *zap.Logger
}

// New creates a generator for the configured provider.
func New(cfg config.GenerationConfig, logger *zap.Logger) (*LLMGenerator, error) {
	var (
		model llms.Model
		err   error
	)
	switch cfg.Provider {
	case "ollama", "":
		model, err = ollama.New(
			ollama.WithModel(cfg.Model),
			ollama.WithServerURL(cfg.BaseURL),
		)
	case "openai":
		token := cfg.APIKey.Value()
		if token == "" {
			token = "placeholder"
		}
		opts := []openai.Option{openai.WithModel(cfg.Model), openai.WithToken(token)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("%w: unknown generation provider %q", errs.ErrInvalidConfiguration, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: creating %s client: %w", errs.ErrGenerationService, cfg.Provider, err)
	}

	return NewWithModel(model, cfg.Model, cfg.Temperature, cfg.Timeout.Duration(), logger), nil
}

// NewWithModel wraps an existing model.
func NewWithModel(model llms.Model, name string, temperature float64, timeout time.Duration, logger *zap.Logger) *LLMGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMGenerator{
		model:       model,
		name:        name,
		temperature: temperature,
		timeout:     timeout,
		logger:      logger,
	}
}

// Complete sends prompt to the model and returns its answer. Failures wrap
// errs.ErrGenerationService.
func (g *LLMGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "generation.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("model", g.name),
		attribute.Int("prompt.length", len(prompt)),
	)

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	answer, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt, llms.WithTemperature(g.temperature))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return "", fmt.Errorf("%w: model %s: %w", errs.ErrGenerationService, g.name, err)
	}

	g.logger.Debug("generation complete",
		zap.String("model", g.name),
		zap.Duration("duration", time.Since(start)),
		zap.Int("answer_length", len(answer)),
	)
	return answer, nil
}
