package config

import "time"

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderGoogle ProviderType = "google"
	ProviderOllama ProviderType = "ollama"
)

// EmbeddingProviderType identifies an embedding backend.
type EmbeddingProviderType string

const (
	EmbeddingOpenAI    EmbeddingProviderType = "openai"
	EmbeddingGoogle    EmbeddingProviderType = "google"
	EmbeddingDeepInfra EmbeddingProviderType = "deepinfra"
)

// Config is the top-level talentsift configuration, corresponding to .talentsift.yml.
type Config struct {
	Provider ProviderType `yaml:"provider" koanf:"provider"`
	Model    string       `yaml:"model" koanf:"model"`

	EmbeddingProvider   EmbeddingProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel      string                `yaml:"embedding_model" koanf:"embedding_model"`
	EmbeddingDimensions int                   `yaml:"embedding_dimensions" koanf:"embedding_dimensions"`
	EmbeddingTimeout    time.Duration         `yaml:"embedding_timeout" koanf:"embedding_timeout"`

	Ingest  IngestConfig  `yaml:"ingest" koanf:"ingest"`
	Ranking RankingConfig `yaml:"ranking" koanf:"ranking"`

	Port    int    `yaml:"port" koanf:"port"`
	DataDir string `yaml:"data_dir" koanf:"data_dir"`

	LogJSON  bool `yaml:"log_json" koanf:"log_json"`
	LogDebug bool `yaml:"log_debug" koanf:"log_debug"`
}

// IngestConfig bounds the chunk-persist-parse retry loop for document uploads.
type IngestConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" koanf:"max_attempts"`
	RetryDelay     time.Duration `yaml:"retry_delay" koanf:"retry_delay"`
	MaxConcurrency int           `yaml:"max_concurrency" koanf:"max_concurrency"`
}

// RankingConfig holds the two-stage ranker knobs.
type RankingConfig struct {
	// ChunkTopK is how many CV chunk hits each JD chunk query may return
	// during the vector prefilter stage.
	ChunkTopK int `yaml:"chunk_top_k" koanf:"chunk_top_k"`
	// DefaultPool is how many candidates reach LLM scoring when the caller
	// asked for prefiltering without a usable top-N.
	DefaultPool int `yaml:"default_pool" koanf:"default_pool"`
}
