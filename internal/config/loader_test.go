package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docrag/internal/errs"
)

// setupTestHome points HOME at a temp dir and chdirs into another one so no
// real config or .env file leaks into a test.
func setupTestHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	setupTestHome(t)

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	home := setupTestHome(t)
	path := filepath.Join(home, ".config", "docrag", "config.yaml")
	writeFile(t, path, `
ingest:
  chunk_size: 500
embeddings:
  model: mxbai-embed-large
  dimension: 1024
  timeout: 30s
vectorstore:
  provider: qdrant
  qdrant:
    host: qdrant.internal
retrieval:
  order: lexical
`)

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Ingest.ChunkSize)
	assert.Equal(t, 10, cfg.Ingest.FileBatchSize, "unset fields keep defaults")
	assert.Equal(t, "mxbai-embed-large", cfg.Embeddings.Model)
	assert.Equal(t, 1024, cfg.Embeddings.Dimension)
	assert.Equal(t, 30*time.Second, cfg.Embeddings.Timeout.Duration())
	assert.Equal(t, "qdrant", cfg.VectorStore.Provider)
	assert.Equal(t, "qdrant.internal", cfg.VectorStore.Qdrant.Host)
	assert.Equal(t, 6334, cfg.VectorStore.Qdrant.Port)
	assert.Equal(t, "lexical", cfg.Retrieval.Order)
}

func TestLoad_TOML(t *testing.T) {
	dir := setupTestHome(t)
	path := filepath.Join(dir, "docrag.toml")
	writeFile(t, path, `
[ingest]
chunk_size = 256

[generation]
model = "qwen2.5"

[vectorstore.chromem]
path = "/tmp/docrag-store"
`)

	cfg, err := Load(LoadOptions{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Ingest.ChunkSize)
	assert.Equal(t, "qwen2.5", cfg.Generation.Model)
	assert.Equal(t, "/tmp/docrag-store", cfg.VectorStore.Chromem.Path)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := setupTestHome(t)
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "ingest:\n  chunk_size: 500\n")

	t.Setenv("DOCRAG_INGEST_CHUNK_SIZE", "800")
	t.Setenv("DOCRAG_VECTORSTORE_QDRANT_HOST", "10.0.0.5")
	t.Setenv("DOCRAG_EMBEDDINGS_API_KEY", "sk-test")

	cfg, err := Load(LoadOptions{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Ingest.ChunkSize)
	assert.Equal(t, "10.0.0.5", cfg.VectorStore.Qdrant.Host)
	assert.Equal(t, "sk-test", cfg.Embeddings.APIKey.Value())
}

func TestLoad_EnvFile(t *testing.T) {
	dir := setupTestHome(t)
	envPath := filepath.Join(dir, "docrag.env")
	writeFile(t, envPath, "DOCRAG_GENERATION_MODEL=phi4\n")
	t.Cleanup(func() { os.Unsetenv("DOCRAG_GENERATION_MODEL") })

	cfg, err := Load(LoadOptions{EnvFile: envPath})
	require.NoError(t, err)
	assert.Equal(t, "phi4", cfg.Generation.Model)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("explicit file missing", func(t *testing.T) {
		dir := setupTestHome(t)
		_, err := Load(LoadOptions{ConfigPath: filepath.Join(dir, "nope.yaml")})
		assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		dir := setupTestHome(t)
		path := filepath.Join(dir, "config.ini")
		writeFile(t, path, "x=1")
		_, err := Load(LoadOptions{ConfigPath: path})
		assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
	})

	t.Run("invalid values", func(t *testing.T) {
		dir := setupTestHome(t)
		path := filepath.Join(dir, "config.yaml")
		writeFile(t, path, "ingest:\n  chunk_size: 0\n")
		_, err := Load(LoadOptions{ConfigPath: path})
		assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
	})

	t.Run("world writable", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("permission model differs on windows")
		}
		dir := setupTestHome(t)
		path := filepath.Join(dir, "config.yaml")
		writeFile(t, path, "ingest:\n  chunk_size: 10\n")
		require.NoError(t, os.Chmod(path, 0o666))
		_, err := Load(LoadOptions{ConfigPath: path})
		assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
	})

	t.Run("missing env file", func(t *testing.T) {
		dir := setupTestHome(t)
		_, err := Load(LoadOptions{EnvFile: filepath.Join(dir, "missing.env")})
		assert.ErrorIs(t, err, errs.ErrInvalidConfiguration)
	})
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"DOCRAG_INGEST_CHUNK_SIZE":          "ingest.chunk_size",
		"DOCRAG_EMBEDDINGS_BASE_URL":        "embeddings.base_url",
		"DOCRAG_VECTORSTORE_PROVIDER":       "vectorstore.provider",
		"DOCRAG_VECTORSTORE_CHROMEM_PATH":   "vectorstore.chromem.path",
		"DOCRAG_VECTORSTORE_QDRANT_USE_TLS": "vectorstore.qdrant.use_tls",
		"DOCRAG_EXTRACT_OCR_ENABLED":        "extract.ocr.enabled",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}
