package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/errs"
	"github.com/fyrsmithlabs/docrag/internal/prompt"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

type stubSearcher struct {
	passages []retrieval.Passage
	err      error

	gotCollections []string
	all            bool
}

func (s *stubSearcher) Search(_ context.Context, _ string, collections []string, _ int) ([]retrieval.Passage, error) {
	s.gotCollections = collections
	return s.passages, s.err
}

func (s *stubSearcher) SearchAll(context.Context, string, int) ([]retrieval.Passage, error) {
	s.all = true
	return s.passages, s.err
}

type stubGenerator struct {
	prompt string
	reply  string
	err    error
}

func (g *stubGenerator) Complete(_ context.Context, p string) (string, error) {
	g.prompt = p
	return g.reply, g.err
}

func TestAsk(t *testing.T) {
	searcher := &stubSearcher{passages: []retrieval.Passage{
		{Text: "The reactor was commissioned in 1998.", Collection: "root"},
	}}
	gen := &stubGenerator{reply: "Source [1]. 1998."}
	a := NewAnswerer(searcher, nil, gen, nil)

	ans, err := a.Ask(context.Background(), "When was it commissioned?", []string{"root"}, 5)
	require.NoError(t, err)

	assert.Equal(t, "Source [1]. 1998.", ans.Answer)
	assert.False(t, ans.Refused)
	assert.Len(t, ans.Passages, 1)
	assert.Equal(t, []string{"root"}, searcher.gotCollections)
	assert.Equal(t, prompt.Build("When was it commissioned?", []string{"The reactor was commissioned in 1998."}), gen.prompt)
}

func TestAsk_AllCollectionsWhenNoneNamed(t *testing.T) {
	searcher := &stubSearcher{passages: []retrieval.Passage{{Text: "x"}}}
	a := NewAnswerer(searcher, nil, &stubGenerator{reply: "ok"}, nil)

	_, err := a.Ask(context.Background(), "q", nil, 5)
	require.NoError(t, err)
	assert.True(t, searcher.all)
}

func TestAsk_NoPassagesRefusesWithoutGenerating(t *testing.T) {
	gen := &stubGenerator{reply: "should not be used"}
	a := NewAnswerer(&stubSearcher{}, prompt.NewBuilder(prompt.LanguageJapanese), gen, nil)

	ans, err := a.Ask(context.Background(), "q", []string{"root"}, 5)
	require.NoError(t, err)
	assert.True(t, ans.Refused)
	assert.Equal(t, prompt.RefusalTextJapanese, ans.Answer)
	assert.Empty(t, gen.prompt)
}

func TestAsk_GenerationFailure(t *testing.T) {
	gen := &stubGenerator{err: errors.Join(errs.ErrGenerationService, errors.New("model not loaded"))}
	a := NewAnswerer(&stubSearcher{passages: []retrieval.Passage{{Text: "x"}}}, nil, gen, nil)

	_, err := a.Ask(context.Background(), "q", []string{"root"}, 5)
	assert.ErrorIs(t, err, errs.ErrGenerationService)
}

func TestAsk_SearchFailure(t *testing.T) {
	a := NewAnswerer(&stubSearcher{err: errs.ErrInvalidConfiguration}, nil, &stubGenerator{}, nil)

	_, err := a.Ask(context.Background(), "q", nil, 5)
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
}

func TestAsk_CancelledBeforeRetrieval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	emb := embeddings.NewTestProvider(8)
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{Dimension: emb.Dimension()}, nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateOrGet(context.Background(), "root"))

	gen := &stubGenerator{reply: "unused"}
	a := NewAnswerer(retrieval.New(emb, store), nil, gen, nil)

	ans, err := a.Ask(ctx, "q", []string{"root"}, 5)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, ans)
	assert.Empty(t, gen.prompt)
}
