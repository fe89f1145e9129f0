package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:            ProviderGoogle,
		Model:               "gemini-2.0-flash",
		EmbeddingProvider:   EmbeddingDeepInfra,
		EmbeddingModel:      "BAAI/bge-large-en-v1.5",
		EmbeddingDimensions: 1024,
		EmbeddingTimeout:    30 * time.Second,
		Ingest: IngestConfig{
			MaxAttempts:    2,
			RetryDelay:     3 * time.Second,
			MaxConcurrency: 5,
		},
		Ranking: RankingConfig{
			ChunkTopK:   15,
			DefaultPool: 5,
		},
		Port:    8080,
		DataDir: ".talentsift",
	}
}
