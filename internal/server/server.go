// Package server exposes the ingestion, ranking and question-generation
// pipelines over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/chunker"
	"github.com/talentsift/talentsift/internal/docstore"
	"github.com/talentsift/talentsift/internal/ingest"
	"github.com/talentsift/talentsift/internal/ranker"
	"github.com/talentsift/talentsift/internal/registry"
)

// Config holds server configuration.
type Config struct {
	Port     int
	AllowAll bool // allow all CORS origins (dev mode)
}

// Ingestor drives document uploads.
type Ingestor interface {
	ProcessJD(ctx context.Context, content chunker.Content, filename string) (*ingest.JDResult, error)
	ProcessCV(ctx context.Context, content chunker.Content, filename, jdID string) (*ingest.CVResult, error)
	ProcessCVBatch(ctx context.Context, contents []chunker.Content, filenames []string, jdID string) []ingest.BatchItem
}

// CVRanker scores candidate CVs against a JD.
type CVRanker interface {
	Rank(ctx context.Context, jdID string, candidates []ranker.Candidate, topN int) ([]ranker.RankedCV, error)
}

// QuestionService generates interview questions for a candidate.
type QuestionService interface {
	Generate(ctx context.Context, jdID, cvID string) (*ranker.Questions, error)
}

// TextReconstructor rebuilds full document text from stored chunks.
type TextReconstructor interface {
	ReconstructFullText(ctx context.Context, docID string, kind docstore.Kind) (string, error)
}

// DocumentCatalog reads the document registry.
type DocumentCatalog interface {
	Get(ctx context.Context, docID string) (*registry.Document, error)
	CVsForJD(ctx context.Context, jdID string) ([]registry.Document, error)
	ListByKind(ctx context.Context, kind docstore.Kind) ([]registry.Document, error)
}

// Server is the talentsift HTTP server.
type Server struct {
	cfg        Config
	ingestor   Ingestor
	ranker     CVRanker
	questions  QuestionService
	texts      TextReconstructor
	catalog    DocumentCatalog
	log        *zap.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a Server with all dependencies.
func New(cfg Config, ingestor Ingestor, cvRanker CVRanker, questions QuestionService, texts TextReconstructor, catalog DocumentCatalog, log *zap.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		ingestor:  ingestor,
		ranker:    cvRanker,
		questions: questions,
		texts:     texts,
		catalog:   catalog,
		log:       log,
	}

	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	s.registerRoutes(r)
	return r
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// Uploads and ranking hold the connection while LLM calls run.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Info("talentsift server listening", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
