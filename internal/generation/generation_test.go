package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/errs"
)

type mockModel struct {
	answer   string
	err      error
	prompt   string
	deadline bool
}

func (m *mockModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	_, m.deadline = ctx.Deadline()
	if m.err != nil {
		return nil, m.err
	}
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				m.prompt = text.Text
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.answer}}}, nil
}

func (m *mockModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestComplete(t *testing.T) {
	model := &mockModel{answer: "Source: a.txt. The answer is 42."}
	g := NewWithModel(model, "llama3.2", 0.2, time.Minute, nil)

	got, err := g.Complete(context.Background(), "what is the answer?")
	require.NoError(t, err)
	assert.Equal(t, "Source: a.txt. The answer is 42.", got)
	assert.Equal(t, "what is the answer?", model.prompt)
	assert.True(t, model.deadline)
}

func TestComplete_Error(t *testing.T) {
	backend := errors.New("model not found")
	g := NewWithModel(&mockModel{err: backend}, "llama3.2", 0, 0, nil)

	_, err := g.Complete(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrGenerationService)
	assert.ErrorIs(t, err, backend)
}

func TestNew(t *testing.T) {
	g, err := New(config.Default().Generation, nil)
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", g.name)

	cfg := config.Default().Generation
	cfg.Provider = "openai"
	cfg.BaseURL = "http://localhost:8000/v1"
	_, err = New(cfg, nil)
	require.NoError(t, err)

	cfg.Provider = "bard"
	_, err = New(cfg, nil)
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
}
