// Package config provides configuration loading for docrag.
//
// Configuration is assembled from hardcoded defaults, an optional YAML or TOML
// file, an optional .env file and DOCRAG_* environment variables. See Load.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/docrag/internal/errs"
)

// Config holds the complete docrag configuration.
type Config struct {
	Ingest      IngestConfig      `koanf:"ingest"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Generation  GenerationConfig  `koanf:"generation"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Retrieval   RetrievalConfig   `koanf:"retrieval"`
	Prompt      PromptConfig      `koanf:"prompt"`
	Extract     ExtractConfig     `koanf:"extract"`
	Events      EventsConfig      `koanf:"events"`
	Server      ServerConfig      `koanf:"server"`
	MCP         MCPConfig         `koanf:"mcp"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
}

// IngestConfig controls directory ingestion.
type IngestConfig struct {
	ChunkSize     int      `koanf:"chunk_size"`
	FileBatchSize int      `koanf:"file_batch_size"`
	MaxFileSize   int64    `koanf:"max_file_size"`
	Exclude       []string `koanf:"exclude"`
	ManifestPath  string   `koanf:"manifest_path"` // empty disables the manifest
	WatchDebounce Duration `koanf:"watch_debounce"`
	Force         bool     `koanf:"force"` // re-ingest files the manifest marks unchanged
}

// EmbeddingsConfig selects and tunes the embedding provider.
type EmbeddingsConfig struct {
	Provider          string   `koanf:"provider"` // ollama, openai, fastembed
	BaseURL           string   `koanf:"base_url"`
	Model             string   `koanf:"model"`
	APIKey            Secret   `koanf:"api_key"`
	Dimension         int      `koanf:"dimension"`
	Concurrency       int      `koanf:"concurrency"`
	RequestsPerSecond float64  `koanf:"requests_per_second"` // 0 means unlimited
	Timeout           Duration `koanf:"timeout"`
	CacheDir          string   `koanf:"cache_dir"` // fastembed model cache
}

// GenerationConfig selects the text generation backend.
type GenerationConfig struct {
	Provider    string   `koanf:"provider"` // ollama, openai
	BaseURL     string   `koanf:"base_url"`
	Model       string   `koanf:"model"`
	APIKey      Secret   `koanf:"api_key"`
	Temperature float64  `koanf:"temperature"`
	Timeout     Duration `koanf:"timeout"`
}

// VectorStoreConfig selects the vector store backend.
type VectorStoreConfig struct {
	Provider string        `koanf:"provider"` // chromem, qdrant
	Chromem  ChromemConfig `koanf:"chromem"`
	Qdrant   QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig configures the embedded chromem-go store.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// QdrantConfig configures the Qdrant gRPC client.
type QdrantConfig struct {
	Host       string   `koanf:"host"`
	Port       int      `koanf:"port"`
	UseTLS     bool     `koanf:"use_tls"`
	APIKey     Secret   `koanf:"api_key"`
	Timeout    Duration `koanf:"timeout"`
	MaxRetries int      `koanf:"max_retries"`
}

// RetrievalConfig tunes multi-collection search.
type RetrievalConfig struct {
	Limit       int    `koanf:"limit"`
	Order       string `koanf:"order"` // distance, lexical
	Concurrency int    `koanf:"concurrency"`
}

// PromptConfig selects the prompt template.
type PromptConfig struct {
	Language string `koanf:"language"` // en, ja
}

// ExtractConfig configures text extraction.
type ExtractConfig struct {
	OCR OCRConfig `koanf:"ocr"`
}

// OCRConfig configures the external OCR command used for scanned PDFs.
type OCRConfig struct {
	Enabled bool     `koanf:"enabled"`
	Command string   `koanf:"command"`
	Timeout Duration `koanf:"timeout"`
}

// EventsConfig configures ingestion event publishing.
type EventsConfig struct {
	NATSURL       string `koanf:"nats_url"` // empty disables publishing
	SubjectPrefix string `koanf:"subject_prefix"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// MCPConfig holds MCP server identity.
type MCPConfig struct {
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
}

// LoggingConfig is the subset of logging settings exposed in the config file.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, console
}

// TelemetryConfig is the subset of OpenTelemetry settings exposed in the config file.
type TelemetryConfig struct {
	Enabled    bool    `koanf:"enabled"`
	Endpoint   string  `koanf:"endpoint"`
	Protocol   string  `koanf:"protocol"` // grpc, http/protobuf
	Insecure   bool    `koanf:"insecure"`
	SampleRate float64 `koanf:"sample_rate"`
	Logs       bool    `koanf:"logs"` // bridge logs to the collector
}

// Default returns the configuration used when nothing else is specified.
func Default() *Config {
	return &Config{
		Ingest: IngestConfig{
			ChunkSize:     1000,
			FileBatchSize: 10,
			MaxFileSize:   50 * 1024 * 1024,
			WatchDebounce: Duration(500 * time.Millisecond),
		},
		Embeddings: EmbeddingsConfig{
			Provider:    "ollama",
			BaseURL:     "http://localhost:11434",
			Model:       "nomic-embed-text",
			Dimension:   768,
			Concurrency: 4,
			Timeout:     Duration(60 * time.Second),
		},
		Generation: GenerationConfig{
			Provider:    "ollama",
			BaseURL:     "http://localhost:11434",
			Model:       "llama3.2",
			Temperature: 0.2,
			Timeout:     Duration(120 * time.Second),
		},
		VectorStore: VectorStoreConfig{
			Provider: "chromem",
			Chromem: ChromemConfig{
				Path:     "~/.config/docrag/vectorstore",
				Compress: true,
			},
			Qdrant: QdrantConfig{
				Host:       "localhost",
				Port:       6334,
				Timeout:    Duration(30 * time.Second),
				MaxRetries: 3,
			},
		},
		Retrieval: RetrievalConfig{
			Limit:       5,
			Order:       "distance",
			Concurrency: 8,
		},
		Prompt: PromptConfig{
			Language: "en",
		},
		Extract: ExtractConfig{
			OCR: OCRConfig{
				Enabled: false,
				Command: "ocrmypdf",
				Timeout: Duration(5 * time.Minute),
			},
		},
		Events: EventsConfig{
			SubjectPrefix: "docrag",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            9191,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		MCP: MCPConfig{
			Name:    "docrag",
			Version: "dev",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			Enabled:    false,
			Endpoint:   "localhost:4317",
			Protocol:   "grpc",
			Insecure:   true,
			SampleRate: 1.0,
		},
	}
}

// Validate checks the configuration. Every violation wraps
// errs.ErrInvalidConfiguration; all violations are reported together.
func (c *Config) Validate() error {
	var problems []error
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf("%w: "+format, append([]any{errs.ErrInvalidConfiguration}, args...)...))
	}

	if c.Ingest.ChunkSize <= 0 {
		add("ingest.chunk_size must be > 0, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.FileBatchSize <= 0 {
		add("ingest.file_batch_size must be > 0, got %d", c.Ingest.FileBatchSize)
	}
	if c.Ingest.MaxFileSize <= 0 {
		add("ingest.max_file_size must be > 0, got %d", c.Ingest.MaxFileSize)
	}

	switch c.Embeddings.Provider {
	case "ollama", "openai", "fastembed":
	default:
		add("embeddings.provider must be ollama, openai or fastembed, got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.Model == "" {
		add("embeddings.model is required")
	}
	if c.Embeddings.Dimension <= 0 {
		add("embeddings.dimension must be > 0, got %d", c.Embeddings.Dimension)
	}
	if c.Embeddings.Concurrency <= 0 {
		add("embeddings.concurrency must be > 0, got %d", c.Embeddings.Concurrency)
	}
	if c.Embeddings.RequestsPerSecond < 0 {
		add("embeddings.requests_per_second must be >= 0")
	}

	switch c.Generation.Provider {
	case "ollama", "openai":
	default:
		add("generation.provider must be ollama or openai, got %q", c.Generation.Provider)
	}
	if c.Generation.Model == "" {
		add("generation.model is required")
	}

	switch c.VectorStore.Provider {
	case "chromem":
		if c.VectorStore.Chromem.Path == "" {
			add("vectorstore.chromem.path is required")
		}
	case "qdrant":
		if c.VectorStore.Qdrant.Host == "" {
			add("vectorstore.qdrant.host is required")
		}
		if c.VectorStore.Qdrant.Port <= 0 || c.VectorStore.Qdrant.Port > 65535 {
			add("vectorstore.qdrant.port out of range: %d", c.VectorStore.Qdrant.Port)
		}
	default:
		add("vectorstore.provider must be chromem or qdrant, got %q", c.VectorStore.Provider)
	}

	if c.Retrieval.Limit < 0 {
		add("retrieval.limit must be >= 0, got %d", c.Retrieval.Limit)
	}
	if c.Retrieval.Order != "distance" && c.Retrieval.Order != "lexical" {
		add("retrieval.order must be distance or lexical, got %q", c.Retrieval.Order)
	}
	if c.Retrieval.Concurrency <= 0 {
		add("retrieval.concurrency must be > 0, got %d", c.Retrieval.Concurrency)
	}

	if c.Prompt.Language != "en" && c.Prompt.Language != "ja" {
		add("prompt.language must be en or ja, got %q", c.Prompt.Language)
	}

	if c.Extract.OCR.Enabled && c.Extract.OCR.Command == "" {
		add("extract.ocr.command is required when OCR is enabled")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("server.port out of range: %d", c.Server.Port)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		add("logging.format must be json or console, got %q", c.Logging.Format)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		add("telemetry.sample_rate must be between 0 and 1, got %f", c.Telemetry.SampleRate)
	}

	return errors.Join(problems...)
}
