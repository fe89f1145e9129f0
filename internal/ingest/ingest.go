// Package ingest drives document uploads end to end: chunk the document,
// persist its chunks to the vector index, register it, and extract
// structured data with the LLM. CV ingestion retries on failure,
// distinguishing a failed index write (retry everything) from a failed LLM
// parse after a successful write (retry the parse only, keep the write).
package ingest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/apperr"
	"github.com/talentsift/talentsift/internal/chunker"
	"github.com/talentsift/talentsift/internal/config"
	"github.com/talentsift/talentsift/internal/docstore"
	"github.com/talentsift/talentsift/internal/llm"
	"github.com/talentsift/talentsift/internal/prompts"
	"github.com/talentsift/talentsift/internal/registry"
)

// DocumentChunker splits raw documents into enriched chunks.
type DocumentChunker interface {
	Chunk(ctx context.Context, content chunker.Content, kind docstore.Kind) ([]chunker.Chunk, error)
}

// ChunkPersister writes chunk sets to the vector index.
type ChunkPersister interface {
	Persist(ctx context.Context, chunks []docstore.Chunk, kind docstore.Kind, metadata map[string]string) error
}

// DocumentRegistry records uploads and their extracted structured data.
type DocumentRegistry interface {
	Register(ctx context.Context, doc registry.Document) error
	SetStructured(ctx context.Context, docID, structured string) error
}

// Metadata keys attached to every persisted chunk.
const (
	metaDocID    = "original_doc_id"
	metaFilename = "original_filename"
	metaJDID     = "associated_jd_id"
)

// JDResult is the outcome of a JD upload.
type JDResult struct {
	JDID     string      `json:"jd_id"`
	Filename string      `json:"filename"`
	Keywords *JDKeywords `json:"jd_data,omitempty"`
	// KeywordsError is set when keyword extraction failed; the JD itself
	// is still persisted and rankable.
	KeywordsError string `json:"keywords_error,omitempty"`
}

// CVResult is the outcome of a CV upload.
type CVResult struct {
	CVID     string    `json:"cv_id"`
	Filename string    `json:"filename"`
	Success  bool      `json:"success"`
	CVData   *ParsedCV `json:"cv_data,omitempty"`
	// ParseError is set when the structured parse failed for good but the
	// chunks were persisted; the CV is still rankable.
	ParseError string `json:"parse_error,omitempty"`
}

// BatchItem pairs one CV of a batch upload with its outcome.
type BatchItem struct {
	Filename string    `json:"filename"`
	Result   *CVResult `json:"result,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Pipeline wires the chunker, document store, registry and LLM together.
type Pipeline struct {
	chunker  DocumentChunker
	store    ChunkPersister
	registry DocumentRegistry
	provider llm.Provider
	library  *prompts.Library
	cfg      config.IngestConfig
	log      *zap.Logger
}

// New creates a Pipeline.
func New(chk DocumentChunker, store ChunkPersister, reg DocumentRegistry, provider llm.Provider, library *prompts.Library, cfg config.IngestConfig, log *zap.Logger) *Pipeline {
	return &Pipeline{
		chunker:  chk,
		store:    store,
		registry: reg,
		provider: provider,
		library:  library,
		cfg:      cfg,
		log:      log,
	}
}

// ProcessJD ingests a job description: chunk, persist, register, then
// extract searchable keywords. Keyword extraction failure does not fail the
// upload.
func (p *Pipeline) ProcessJD(ctx context.Context, content chunker.Content, filename string) (*JDResult, error) {
	jdID := uuid.New().String()
	log := p.log.With(zap.String("jd_id", jdID), zap.String("filename", filename))
	log.Info("processing JD upload")

	chunks, err := p.chunker.Chunk(ctx, content, docstore.KindJD)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{metaDocID: jdID, metaFilename: filename}
	if err := p.store.Persist(ctx, chunker.ToStoreChunks(chunks), docstore.KindJD, metadata); err != nil {
		return nil, err
	}

	if err := p.registry.Register(ctx, registry.Document{
		ID:       jdID,
		Kind:     docstore.KindJD,
		Filename: filename,
	}); err != nil {
		return nil, err
	}

	result := &JDResult{JDID: jdID, Filename: filename}

	jdText := content.RawText
	if strings.TrimSpace(jdText) == "" {
		jdText = joinOriginalText(chunks)
	}
	keywords, raw, err := p.extractKeywords(ctx, jdText)
	if err != nil {
		log.Warn("JD keyword extraction failed, continuing without keywords", zap.Error(err))
		result.KeywordsError = apperr.MessageOf(err)
		return result, nil
	}
	result.Keywords = keywords

	if err := p.registry.SetStructured(ctx, jdID, raw); err != nil {
		log.Warn("storing JD keywords failed", zap.Error(err))
	}
	log.Info("JD processed", zap.Int("chunks", len(chunks)), zap.Int("keywords", len(keywords.Keywords)))
	return result, nil
}

// ProcessCV ingests a CV against a JD with bounded retries. Chunking or
// persistence failures retry the whole sequence; a parse failure after the
// chunks are already persisted retries the parse only. When every attempt
// fails but the chunks made it in, the CV is kept (it can still be ranked)
// and the parse error is reported instead of the structured data.
func (p *Pipeline) ProcessCV(ctx context.Context, content chunker.Content, filename, jdID string) (*CVResult, error) {
	if jdID == "" {
		return nil, apperr.New(apperr.KindInput, "associated JD ID is required to process a CV")
	}

	cvID := uuid.New().String()
	log := p.log.With(zap.String("cv_id", cvID), zap.String("jd_id", jdID), zap.String("filename", filename))

	persisted := false
	var lastErr error

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		log.Info("processing CV upload", zap.Int("attempt", attempt), zap.Int("max_attempts", p.cfg.MaxAttempts))

		if !persisted {
			if err := p.persistCV(ctx, content, filename, cvID, jdID); err != nil {
				lastErr = err
				log.Error("CV chunk persistence failed", zap.Int("attempt", attempt), zap.Error(err))
				p.wait(ctx, attempt)
				continue
			}
			persisted = true

			if err := p.registry.Register(ctx, registry.Document{
				ID:           cvID,
				Kind:         docstore.KindCV,
				Filename:     filename,
				AssociatedJD: jdID,
			}); err != nil {
				return nil, err
			}
		}

		parsed, raw, err := p.parseCV(ctx, content)
		if err != nil {
			lastErr = err
			log.Warn("CV structured parse failed, chunks are already persisted", zap.Int("attempt", attempt), zap.Error(err))
			p.wait(ctx, attempt)
			continue
		}

		if err := p.registry.SetStructured(ctx, cvID, raw); err != nil {
			log.Warn("storing parsed CV data failed", zap.Error(err))
		}
		log.Info("CV processed", zap.Int("attempt", attempt))
		return &CVResult{CVID: cvID, Filename: filename, Success: true, CVData: parsed}, nil
	}

	if persisted {
		log.Error("all parse attempts failed, keeping persisted CV without structured data", zap.Error(lastErr))
		return &CVResult{
			CVID:       cvID,
			Filename:   filename,
			Success:    false,
			ParseError: apperr.MessageOf(lastErr),
		}, nil
	}
	return nil, lastErr
}

// ProcessCVBatch ingests several CVs concurrently against one JD. Each CV is
// an independent task; one failure never aborts its siblings.
func (p *Pipeline) ProcessCVBatch(ctx context.Context, contents []chunker.Content, filenames []string, jdID string) []BatchItem {
	results := make([]BatchItem, len(contents))

	limit := p.cfg.MaxConcurrency
	if limit < 1 {
		limit = 1
	}
	sem := make(chan struct{}, limit)

	var wg sync.WaitGroup
	for i := range contents {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			name := ""
			if i < len(filenames) {
				name = filenames[i]
			}
			item := BatchItem{Filename: name}
			result, err := p.ProcessCV(ctx, contents[i], name, jdID)
			if err != nil {
				item.Error = apperr.MessageOf(err)
			} else {
				item.Result = result
			}
			results[i] = item
		}(i)
	}
	wg.Wait()
	return results
}

func (p *Pipeline) persistCV(ctx context.Context, content chunker.Content, filename, cvID, jdID string) error {
	chunks, err := p.chunker.Chunk(ctx, content, docstore.KindCV)
	if err != nil {
		return err
	}
	metadata := map[string]string{
		metaDocID:    cvID,
		metaFilename: filename,
		metaJDID:     jdID,
	}
	return p.store.Persist(ctx, chunker.ToStoreChunks(chunks), docstore.KindCV, metadata)
}

// wait sleeps between retry attempts, except after the final one.
func (p *Pipeline) wait(ctx context.Context, attempt int) {
	if attempt >= p.cfg.MaxAttempts || p.cfg.RetryDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(p.cfg.RetryDelay):
	}
}

func joinOriginalText(chunks []chunker.Chunk) string {
	var parts []string
	for _, c := range chunks {
		if strings.TrimSpace(c.OgText) != "" {
			parts = append(parts, c.OgText)
		}
	}
	return strings.Join(parts, "\n\n")
}
