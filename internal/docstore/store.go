// Package docstore owns persisted document chunks: embedding generation,
// persistence, retrieval, full-text reconstruction and similarity search,
// parameterized by document kind (JD vs CV).
package docstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/apperr"
	"github.com/talentsift/talentsift/internal/embeddings"
	"github.com/talentsift/talentsift/internal/vecindex"
)

const scrollPageSize = 100

// Store is the document store. It is the only writer of the chunk
// collections; everything else reads through its query methods.
type Store struct {
	index    *vecindex.Index
	embedder embeddings.Embedder
	log      *zap.Logger
}

// New creates a Store on top of the given index and embedder.
func New(index *vecindex.Index, embedder embeddings.Embedder, log *zap.Logger) *Store {
	return &Store{index: index, embedder: embedder, log: log}
}

// InitCollections ensures both chunk collections exist. It is idempotent and
// safe to call on every startup.
func (s *Store) InitCollections() error {
	for _, kind := range []Kind{KindJD, KindCV} {
		if err := s.index.EnsureCollection(kind.Collection()); err != nil {
			return apperr.Wrap(apperr.KindPersistence, err, "initializing %s collection", kind)
		}
		s.log.Info("collection ready", zap.String("collection", kind.Collection()))
	}
	return nil
}

// Dimensions returns the embedding dimensionality the store operates at.
func (s *Store) Dimensions() int {
	return s.embedder.Dimensions()
}

// Embed turns text into a vector. It never fails: any backend error, and
// empty or whitespace-only input, yield a zero vector of the configured
// dimensionality. Callers must treat zero vectors as "no signal".
//
// A zero vector is indistinguishable from a legitimately null embedding;
// known trade-off, kept for now.
func (s *Store) Embed(ctx context.Context, text string) []float32 {
	zero := make([]float32, s.embedder.Dimensions())

	if strings.TrimSpace(text) == "" {
		s.log.Warn("empty text provided for embedding, returning zero vector")
		return zero
	}

	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		s.log.Error("embedding request failed, falling back to zero vector",
			zap.String("model", s.embedder.Name()),
			zap.Int("text_length", len(text)),
			zap.Error(err))
		return zero
	}
	if len(vecs) != 1 || len(vecs[0]) != s.embedder.Dimensions() {
		s.log.Error("embedding backend returned malformed result, falling back to zero vector",
			zap.Int("vectors", len(vecs)))
		return zero
	}
	return vecs[0]
}

// Persist embeds and upserts the document's chunks into the kind's
// collection. Chunks with empty enriched text are skipped with a warning.
// Indices are assigned after skipping, so persisted chunk_index values are
// always the gap-free range 0..total-1. The call fails when no chunk at all
// is persistable.
func (s *Store) Persist(ctx context.Context, chunks []Chunk, kind Kind, metadata map[string]string) error {
	docID := metadata[fieldDocID]
	if docID == "" {
		return apperr.New(apperr.KindInput, "metadata is missing %s", fieldDocID)
	}

	var usable []Chunk
	for i, c := range chunks {
		if strings.TrimSpace(c.EnrichedText) == "" {
			s.log.Warn("skipping chunk with empty enriched text",
				zap.String("doc_id", docID), zap.Int("chunk", i))
			continue
		}
		usable = append(usable, c)
	}

	if len(usable) == 0 {
		return apperr.New(apperr.KindInput, "no persistable chunks for document %s", docID)
	}

	points := make([]vecindex.Point, 0, len(usable))
	for i, c := range usable {
		payload := make(map[string]string, len(metadata)+6)
		for k, v := range metadata {
			payload[k] = v
		}
		payload[fieldChunkIndex] = strconv.Itoa(i)
		payload[fieldEnrichedText] = c.EnrichedText
		payload[fieldOgText] = c.OgText
		payload[fieldTotalChunks] = strconv.Itoa(len(usable))

		// Weight is a JD-only concept: CV chunks never carry it, and a JD
		// chunk without a valid weight defaults to 1.
		if kind == KindJD {
			w := c.Weight
			if w < 1 || w > 3 {
				w = 1
			}
			payload[fieldWeight] = strconv.Itoa(w)
		}

		points = append(points, vecindex.Point{
			ID:      fmt.Sprintf("%s:%d", docID, i),
			Vector:  s.Embed(ctx, c.EnrichedText),
			Payload: payload,
		})
	}

	if err := s.index.Upsert(ctx, kind.Collection(), points); err != nil {
		return apperr.Wrap(apperr.KindPersistence, err, "persisting document %s", docID)
	}

	s.log.Info("document chunks persisted",
		zap.String("doc_id", docID),
		zap.String("collection", kind.Collection()),
		zap.Int("chunks", len(points)))
	return nil
}

// FetchChunks retrieves every chunk payload for the document, paging through
// the index until the scroll cursor is exhausted.
func (s *Store) FetchChunks(ctx context.Context, docID string, kind Kind) ([]StoredChunk, error) {
	if docID == "" {
		return nil, apperr.New(apperr.KindInput, "document ID is required")
	}

	var chunks []StoredChunk
	cursor := ""
	for {
		page, next, err := s.index.Scroll(ctx, kind.Collection(), vecindex.Filter{fieldDocID: docID}, cursor, scrollPageSize)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindPersistence, err, "fetching chunks for document %s", docID)
		}
		for _, p := range page {
			chunks = append(chunks, payloadToChunk(p.Payload))
		}
		if next == "" {
			break
		}
		cursor = next
	}

	if len(chunks) == 0 {
		s.log.Warn("no chunks found for document",
			zap.String("doc_id", docID), zap.String("collection", kind.Collection()))
	}
	return chunks, nil
}

// ReconstructFullText rebuilds the document's original text by concatenating
// its og_text values in chunk_index order, separated by blank lines. Chunks
// without a valid integer index are excluded with a warning rather than
// aborting the reconstruction.
func (s *Store) ReconstructFullText(ctx context.Context, docID string, kind Kind) (string, error) {
	chunks, err := s.FetchChunks(ctx, docID, kind)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return "", apperr.New(apperr.KindNotFound, "document %s has no stored chunks", docID)
	}

	ordered := chunks[:0]
	for _, c := range chunks {
		if !c.HasIndex {
			s.log.Warn("chunk has no valid chunk_index, excluding from reconstruction",
				zap.String("doc_id", docID))
			continue
		}
		ordered = append(ordered, c)
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ChunkIndex < ordered[j].ChunkIndex })

	var parts []string
	for _, c := range ordered {
		if strings.TrimSpace(c.OgText) != "" {
			parts = append(parts, c.OgText)
		}
	}
	if len(parts) == 0 {
		return "", apperr.New(apperr.KindNotFound, "document %s has no usable original text", docID)
	}

	return strings.Join(parts, "\n\n"), nil
}

// Search embeds the query and returns up to topK chunks from the kind's
// collection, each annotated with its similarity score. When allowDocIDs is
// non-empty the search considers only chunks of those documents. A zero
// query embedding is degenerate but still searched.
func (s *Store) Search(ctx context.Context, query string, kind Kind, topK int, allowDocIDs []string) ([]StoredChunk, error) {
	vec := s.Embed(ctx, query)
	if isZero(vec) {
		s.log.Warn("query embedding is a zero vector, search results carry no signal",
			zap.String("collection", kind.Collection()))
	}

	hits, err := s.index.Search(ctx, kind.Collection(), vec, topK, fieldDocID, allowDocIDs)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "searching %s collection", kind)
	}

	results := make([]StoredChunk, len(hits))
	for i, h := range hits {
		c := payloadToChunk(h.Payload)
		c.Score = h.Similarity
		results[i] = c
	}
	return results, nil
}

func isZero(vec []float32) bool {
	for _, x := range vec {
		if x != 0 {
			return false
		}
	}
	return true
}
