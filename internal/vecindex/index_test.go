package vecindex

import (
	"context"
	"fmt"
	"math"
	"testing"
)

const testDims = 8

func unitVec(values ...float32) []float32 {
	v := make([]float32, testDims)
	copy(v, values)
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix := New(testDims)
	if err := ix.EnsureCollection("chunks"); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	return ix
}

func TestEnsureCollection_Idempotent(t *testing.T) {
	ix := New(testDims)
	for i := 0; i < 3; i++ {
		if err := ix.EnsureCollection("chunks"); err != nil {
			t.Fatalf("EnsureCollection call %d: %v", i+1, err)
		}
	}
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	ix := newTestIndex(t)
	err := ix.Upsert(context.Background(), "chunks", []Point{
		{ID: "p1", Vector: []float32{1, 0}},
	})
	if err == nil {
		t.Error("Upsert with wrong dimensionality: expected error")
	}
}

func TestSearch_AllowlistRestriction(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	points := []Point{
		{ID: "a1", Vector: unitVec(1, 0), Payload: map[string]string{"original_doc_id": "doc-a"}},
		{ID: "b1", Vector: unitVec(0.9, 0.1), Payload: map[string]string{"original_doc_id": "doc-b"}},
		{ID: "c1", Vector: unitVec(0.95, 0.05), Payload: map[string]string{"original_doc_id": "doc-c"}},
	}
	if err := ix.Upsert(ctx, "chunks", points); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := ix.Search(ctx, "chunks", unitVec(1, 0), 10, "original_doc_id", []string{"doc-b"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].Payload["original_doc_id"] != "doc-b" {
		t.Errorf("hit doc = %q, want doc-b", hits[0].Payload["original_doc_id"])
	}
}

func TestSearch_TopKOrdering(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	// Three points at decreasing similarity to the query direction.
	points := []Point{
		{ID: "far", Vector: unitVec(0, 1), Payload: map[string]string{"original_doc_id": "d"}},
		{ID: "near", Vector: unitVec(1, 0.05), Payload: map[string]string{"original_doc_id": "d"}},
		{ID: "mid", Vector: unitVec(1, 1), Payload: map[string]string{"original_doc_id": "d"}},
	}
	if err := ix.Upsert(ctx, "chunks", points); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := ix.Search(ctx, "chunks", unitVec(1, 0), 2, "", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].ID != "near" || hits[1].ID != "mid" {
		t.Errorf("hit order = %s, %s; want near, mid", hits[0].ID, hits[1].ID)
	}
	if hits[0].Similarity < hits[1].Similarity {
		t.Errorf("similarities not descending: %f < %f", hits[0].Similarity, hits[1].Similarity)
	}
}

func TestSearch_ZeroVectorStillExecutes(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	if err := ix.Upsert(ctx, "chunks", []Point{
		{ID: "p1", Vector: unitVec(1, 1), Payload: map[string]string{"original_doc_id": "d"}},
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := ix.Search(ctx, "chunks", make([]float32, testDims), 5, "", nil)
	if err != nil {
		t.Fatalf("Search with zero vector: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("got %d hits, want 1", len(hits))
	}
}

func TestUpsert_ZeroVectorPointSearchesWithoutNaN(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	if err := ix.Upsert(ctx, "chunks", []Point{
		{ID: "degenerate", Vector: make([]float32, testDims), Payload: map[string]string{"original_doc_id": "d1"}},
		{ID: "good", Vector: unitVec(0, 1), Payload: map[string]string{"original_doc_id": "d2"}},
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := ix.Search(ctx, "chunks", unitVec(0, 1), 5, "", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	for _, h := range hits {
		if math.IsNaN(float64(h.Similarity)) {
			t.Errorf("hit %s has NaN similarity", h.ID)
		}
	}
	if hits[0].ID != "good" {
		t.Errorf("top hit = %s, want the matching point above the degenerate one", hits[0].ID)
	}
}

func TestScroll_PaginatesWithoutOverlap(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t)

	var points []Point
	for i := 0; i < 25; i++ {
		points = append(points, Point{
			ID:     fmt.Sprintf("p%02d", i),
			Vector: unitVec(float32(i+1), 1),
			Payload: map[string]string{
				"original_doc_id": "doc-x",
				"chunk_index":     fmt.Sprintf("%d", i),
			},
		})
	}
	// A point from another document the filter must exclude.
	points = append(points, Point{
		ID: "other", Vector: unitVec(1, 2),
		Payload: map[string]string{"original_doc_id": "doc-y"},
	})
	if err := ix.Upsert(ctx, "chunks", points); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	seen := make(map[string]bool)
	cursor := ""
	pages := 0
	for {
		page, next, err := ix.Scroll(ctx, "chunks", Filter{"original_doc_id": "doc-x"}, cursor, 10)
		if err != nil {
			t.Fatalf("Scroll: %v", err)
		}
		pages++
		for _, p := range page {
			if seen[p.ID] {
				t.Errorf("point %s returned twice", p.ID)
			}
			seen[p.ID] = true
		}
		if next == "" {
			break
		}
		cursor = next
	}

	if len(seen) != 25 {
		t.Errorf("scrolled %d points, want 25", len(seen))
	}
	if pages != 3 {
		t.Errorf("took %d pages, want 3", pages)
	}
	if seen["other"] {
		t.Error("filter leaked a point from another document")
	}
}

func TestScroll_EmptyCollection(t *testing.T) {
	ix := newTestIndex(t)
	page, next, err := ix.Scroll(context.Background(), "chunks", nil, "", 10)
	if err != nil {
		t.Fatalf("Scroll: %v", err)
	}
	if len(page) != 0 || next != "" {
		t.Errorf("page=%d next=%q, want empty", len(page), next)
	}
}

func TestScroll_BadCursor(t *testing.T) {
	ix := newTestIndex(t)
	if err := ix.Upsert(context.Background(), "chunks", []Point{
		{ID: "p1", Vector: unitVec(1), Payload: map[string]string{"k": "v"}},
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, _, err := ix.Scroll(context.Background(), "chunks", nil, "not-a-cursor", 10); err == nil {
		t.Error("Scroll with bad cursor: expected error")
	}
}

func TestSearch_MissingCollection(t *testing.T) {
	ix := New(testDims)
	if _, err := ix.Search(context.Background(), "nope", unitVec(1), 5, "", nil); err == nil {
		t.Error("Search on missing collection: expected error")
	}
}
