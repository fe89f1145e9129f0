package cmd

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/chunker"
	"github.com/talentsift/talentsift/internal/config"
	"github.com/talentsift/talentsift/internal/docstore"
	"github.com/talentsift/talentsift/internal/embeddings"
	"github.com/talentsift/talentsift/internal/ingest"
	"github.com/talentsift/talentsift/internal/llm"
	"github.com/talentsift/talentsift/internal/logger"
	"github.com/talentsift/talentsift/internal/prompts"
	"github.com/talentsift/talentsift/internal/ranker"
	"github.com/talentsift/talentsift/internal/registry"
	"github.com/talentsift/talentsift/internal/vecindex"
)

// app bundles the fully wired pipeline shared by the serve and load commands.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	store     *docstore.Store
	registry  *registry.Store
	regDB     *registry.DB
	pipeline  *ingest.Pipeline
	ranker    *ranker.Ranker
	questions *ranker.QuestionGenerator
}

// buildApp loads the configuration and constructs every component of the
// pipeline. Clients are created here once and injected; nothing holds
// ambient global state.
func buildApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.LogJSON, cfg.LogDebug || verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(string(cfg.EmbeddingProvider), cfg.EmbeddingModel, cfg.EmbeddingDimensions, cfg.EmbeddingTimeout)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	index, err := vecindex.NewPersistent(filepath.Join(cfg.DataDir, "vectordb"), cfg.EmbeddingDimensions)
	if err != nil {
		return nil, fmt.Errorf("opening vector index: %w", err)
	}

	store := docstore.New(index, embedder, log)
	if err := store.InitCollections(); err != nil {
		return nil, fmt.Errorf("initializing collections: %w", err)
	}

	provider, err := llm.NewProvider(string(cfg.Provider), cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}

	library, err := prompts.Load()
	if err != nil {
		return nil, fmt.Errorf("loading prompt templates: %w", err)
	}

	regDB, err := registry.Open(filepath.Join(cfg.DataDir, "registry.db"))
	if err != nil {
		return nil, fmt.Errorf("opening registry: %w", err)
	}
	reg := registry.NewStore(regDB)

	chk := chunker.New(provider, library, log)
	pipeline := ingest.New(chk, store, reg, provider, library, cfg.Ingest, log)

	return &app{
		cfg:       cfg,
		log:       log,
		store:     store,
		registry:  reg,
		regDB:     regDB,
		pipeline:  pipeline,
		ranker:    ranker.New(store, provider, library, cfg.Ranking, log),
		questions: ranker.NewQuestionGenerator(store, provider, library, log),
	}, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	if a.regDB != nil {
		a.regDB.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `talentsift init` to create a config file", err)
	}
	return cfg, nil
}
