// Package vecindex wraps chromem-go as a point-oriented vector index:
// named collections of {id, vector, payload} points with filtered scroll,
// filtered nearest-neighbour search, and idempotent collection setup.
package vecindex

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// Point is one indexed vector with its payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]string
}

// Hit is a search result: a point annotated with its cosine similarity.
type Hit struct {
	Point
	Similarity float32
}

// Filter restricts scroll and search to points whose payload matches every
// key/value pair exactly.
type Filter map[string]string

// Index is a chromem-backed vector index. Embeddings are computed upstream;
// the index never calls an embedding backend itself.
type Index struct {
	mu         sync.Mutex
	db         *chromem.DB
	dimensions int
}

// New creates an in-memory index expecting vectors of the given dimensionality.
func New(dimensions int) *Index {
	return &Index{db: chromem.NewDB(), dimensions: dimensions}
}

// NewPersistent creates an index persisted under dir.
func NewPersistent(dir string, dimensions int) (*Index, error) {
	db, err := chromem.NewPersistentDB(dir, true)
	if err != nil {
		return nil, fmt.Errorf("opening vector index at %s: %w", dir, err)
	}
	return &Index{db: db, dimensions: dimensions}, nil
}

// noEmbed guards against accidental reliance on chromem's own embedding path.
func noEmbed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("vecindex: embeddings must be supplied by the caller")
}

// EnsureCollection creates the collection if absent. Calling it again for an
// existing collection is a no-op, so concurrent initializers never race.
// Dimensionality is enforced on every Upsert rather than at creation.
func (ix *Index) EnsureCollection(name string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	meta := map[string]string{"dimensions": strconv.Itoa(ix.dimensions)}
	if _, err := ix.db.GetOrCreateCollection(name, meta, noEmbed); err != nil {
		return fmt.Errorf("ensuring collection %q: %w", name, err)
	}
	return nil
}

func (ix *Index) collection(name string) (*chromem.Collection, error) {
	col := ix.db.GetCollection(name, noEmbed)
	if col == nil {
		return nil, fmt.Errorf("collection %q does not exist", name)
	}
	return col, nil
}

// Upsert adds or replaces points in the collection.
func (ix *Index) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	col, err := ix.collection(collection)
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		if len(p.Vector) != ix.dimensions {
			return fmt.Errorf("point %s has %d dimensions, index expects %d", p.ID, len(p.Vector), ix.dimensions)
		}
		// chromem normalizes embeddings on insert, and normalizing the zero
		// vector produces NaNs that would poison every later search. Store
		// the basis substitute instead so the point ranks low but sanely.
		docs[i] = chromem.Document{
			ID:        p.ID,
			Embedding: nonZero(p.Vector, ix.dimensions),
			Metadata:  p.Payload,
			Content:   p.Payload["enriched_text"],
		}
	}

	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("upserting %d points into %q: %w", len(points), collection, err)
	}
	return nil
}

// Scroll pages through every point matching the filter. cursor is the opaque
// continuation token from the previous page ("" to start); the returned cursor
// is "" once the scan is exhausted. Results are ordered by point ID so pages
// never overlap or skip.
func (ix *Index) Scroll(ctx context.Context, collection string, filter Filter, cursor string, limit int) ([]Point, string, error) {
	if limit <= 0 {
		limit = 100
	}

	col, err := ix.collection(collection)
	if err != nil {
		return nil, "", err
	}

	matched, err := ix.allMatching(ctx, col, filter)
	if err != nil {
		return nil, "", fmt.Errorf("scrolling %q: %w", collection, err)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	offset := 0
	if cursor != "" {
		offset, err = strconv.Atoi(cursor)
		if err != nil || offset < 0 {
			return nil, "", fmt.Errorf("invalid scroll cursor %q", cursor)
		}
	}
	if offset >= len(matched) {
		return nil, "", nil
	}

	end := offset + limit
	next := ""
	if end >= len(matched) {
		end = len(matched)
	} else {
		next = strconv.Itoa(end)
	}

	return matched[offset:end], next, nil
}

// Search returns up to topK points nearest to the query vector, optionally
// restricted to points whose allowField payload value is in allowValues.
func (ix *Index) Search(ctx context.Context, collection string, vector []float32, topK int, allowField string, allowValues []string) ([]Hit, error) {
	if topK <= 0 {
		topK = 10
	}

	col, err := ix.collection(collection)
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}

	// Cosine similarity is undefined for the zero vector; substitute a fixed
	// basis vector so degenerate queries still return a ranked page instead
	// of erroring.
	vector = nonZero(vector, ix.dimensions)

	// The allowlist is a disjunction, which chromem's exact-match filter
	// cannot express. Over-fetch and narrow here instead.
	fetch := topK
	if len(allowValues) > 0 {
		fetch = count
	}
	if fetch > count {
		fetch = count
	}

	results, err := col.QueryEmbedding(ctx, vector, fetch, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", collection, err)
	}

	allowed := make(map[string]bool, len(allowValues))
	for _, v := range allowValues {
		allowed[v] = true
	}

	hits := make([]Hit, 0, topK)
	for _, r := range results {
		if len(allowValues) > 0 && !allowed[r.Metadata[allowField]] {
			continue
		}
		hits = append(hits, Hit{
			Point: Point{
				ID:      r.ID,
				Vector:  r.Embedding,
				Payload: r.Metadata,
			},
			Similarity: r.Similarity,
		})
		if len(hits) == topK {
			break
		}
	}

	return hits, nil
}

// Count returns the number of points in the collection, or 0 when the
// collection does not exist.
func (ix *Index) Count(collection string) int {
	col := ix.db.GetCollection(collection, noEmbed)
	if col == nil {
		return 0
	}
	return col.Count()
}

// allMatching retrieves every point satisfying the filter. chromem exposes
// retrieval only through ranked queries, so this queries with a constant
// vector and keeps the full result set.
func (ix *Index) allMatching(ctx context.Context, col *chromem.Collection, filter Filter) ([]Point, error) {
	count := col.Count()
	if count == 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, basisVector(ix.dimensions), count, map[string]string(filter), nil)
	if err != nil {
		return nil, err
	}

	points := make([]Point, len(results))
	for i, r := range results {
		points[i] = Point{ID: r.ID, Vector: r.Embedding, Payload: r.Metadata}
	}
	return points, nil
}

func basisVector(dimensions int) []float32 {
	v := make([]float32, dimensions)
	v[0] = 1
	return v
}

func nonZero(vector []float32, dimensions int) []float32 {
	for _, x := range vector {
		if x != 0 {
			return vector
		}
	}
	return basisVector(dimensions)
}
