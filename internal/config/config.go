package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (TALENTSIFT_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: TALENTSIFT_PORT -> port,
	// TALENTSIFT_RANKING_CHUNK_TOP_K -> ranking.chunk_top_k, etc.
	if err := k.Load(env.Provider("TALENTSIFT_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "TALENTSIFT_"))
		for _, prefix := range []string{"ingest_", "ranking_"} {
			if strings.HasPrefix(s, prefix) {
				return strings.TrimSuffix(prefix, "_") + "." + strings.TrimPrefix(s, prefix)
			}
		}
		return s
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderGoogle: true,
	ProviderOllama: true,
}

var validEmbeddingProviders = map[EmbeddingProviderType]bool{
	EmbeddingOpenAI:    true,
	EmbeddingGoogle:    true,
	EmbeddingDeepInfra: true,
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q (must be openai, google or ollama)", c.Provider)
	}
	if !validEmbeddingProviders[c.EmbeddingProvider] {
		return fmt.Errorf("invalid embedding provider %q (must be openai, google or deepinfra)", c.EmbeddingProvider)
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("embedding_dimensions must be positive, got %d", c.EmbeddingDimensions)
	}
	if c.EmbeddingTimeout <= 0 {
		return fmt.Errorf("embedding_timeout must be positive, got %s", c.EmbeddingTimeout)
	}
	if c.Ingest.MaxAttempts < 1 {
		return fmt.Errorf("ingest.max_attempts must be at least 1, got %d", c.Ingest.MaxAttempts)
	}
	if c.Ingest.RetryDelay < 0 {
		return fmt.Errorf("ingest.retry_delay must not be negative, got %s", c.Ingest.RetryDelay)
	}
	if c.Ingest.MaxConcurrency < 1 {
		return fmt.Errorf("ingest.max_concurrency must be at least 1, got %d", c.Ingest.MaxConcurrency)
	}
	if c.Ranking.ChunkTopK < 1 {
		return fmt.Errorf("ranking.chunk_top_k must be at least 1, got %d", c.Ranking.ChunkTopK)
	}
	if c.Ranking.DefaultPool < 1 {
		return fmt.Errorf("ranking.default_pool must be at least 1, got %d", c.Ranking.DefaultPool)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}
