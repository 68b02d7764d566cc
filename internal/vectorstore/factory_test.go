package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/errs"
)

func TestNew_Chromem(t *testing.T) {
	cfg := config.VectorStoreConfig{
		Provider: "chromem",
		Chromem:  config.ChromemConfig{Path: t.TempDir()},
	}

	store, err := New(context.Background(), cfg, 3, nil)
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &ChromemStore{}, store)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), config.VectorStoreConfig{Provider: "pinecone"}, 3, nil)
	assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
}
