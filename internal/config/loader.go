package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/fyrsmithlabs/docrag/internal/errs"
)

const (
	// EnvPrefix prefixes every environment variable read by Load.
	EnvPrefix = "DOCRAG_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// nestedSections lists sections whose fields are grouped one level deeper, so
// DOCRAG_VECTORSTORE_QDRANT_HOST maps to vectorstore.qdrant.host.
var nestedSections = map[string][]string{
	"vectorstore": {"chromem", "qdrant"},
	"extract":     {"ocr"},
}

// LoadOptions tells Load where to look.
type LoadOptions struct {
	// ConfigPath is a YAML (.yaml, .yml) or TOML (.toml) file. When empty,
	// DefaultConfigPath is used if it exists.
	ConfigPath string

	// EnvFile is a dotenv file loaded into the process environment before
	// environment variables are read. Existing variables win. When empty,
	// ".env" in the working directory is used if it exists.
	EnvFile string
}

// DefaultConfigPath returns ~/.config/docrag/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "docrag", "config.yaml"), nil
}

// Load builds the configuration.
//
// Precedence (highest to lowest):
//  1. Environment variables (DOCRAG_EMBEDDINGS_MODEL, DOCRAG_INGEST_CHUNK_SIZE, ...)
//  2. The dotenv file, for variables not already set
//  3. The config file
//  4. Default()
//
// Environment variables are mapped by dropping the prefix, lowercasing and
// splitting the section off at the first underscore:
//
//	DOCRAG_INGEST_CHUNK_SIZE        -> ingest.chunk_size
//	DOCRAG_VECTORSTORE_QDRANT_HOST  -> vectorstore.qdrant.host
//
// The returned configuration has been validated.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	path := opts.ConfigPath
	explicit := path != ""
	if !explicit {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if err := loadFile(k, path, explicit); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %w", errs.ErrInvalidConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envKey maps DOCRAG_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}

	section, field := parts[0], parts[1]
	for _, sub := range nestedSections[section] {
		if strings.HasPrefix(field, sub+"_") {
			return section + "." + sub + "." + strings.TrimPrefix(field, sub+"_")
		}
	}
	return section + "." + field
}

func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%w: failed to load env file %s: %w", errs.ErrInvalidConfiguration, path, err)
	}
	return nil
}

func loadFile(k *koanf.Koanf, path string, required bool) error {
	// Open once and validate the descriptor to avoid a TOCTOU race.
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("%w: failed to open config file: %w", errs.ErrInvalidConfiguration, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return fmt.Errorf("%w: config file validation failed: %w", errs.ErrInvalidConfiguration, err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	parser, err := parserFor(path)
	if err != nil {
		return err
	}
	if err := k.Load(rawbytes.Provider(content), parser); err != nil {
		return fmt.Errorf("%w: failed to load config file %s: %w", errs.ErrInvalidConfiguration, path, err)
	}
	return nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".toml":
		return TOMLParser(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported config file extension %q", errs.ErrInvalidConfiguration, filepath.Ext(path))
	}
}

// validateConfigFileProperties rejects oversized and world-writable files.
func validateConfigFileProperties(info os.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("config path is a directory")
	}

	// Skip on Windows (different permission model)
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm&0o002 != 0 {
			return fmt.Errorf("insecure config file permissions: %v (world-writable)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}
