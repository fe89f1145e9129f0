package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/apperr"
	"github.com/talentsift/talentsift/internal/chunker"
	"github.com/talentsift/talentsift/internal/config"
	"github.com/talentsift/talentsift/internal/docstore"
	"github.com/talentsift/talentsift/internal/llm"
	"github.com/talentsift/talentsift/internal/prompts"
	"github.com/talentsift/talentsift/internal/registry"
)

// fakeChunker returns canned chunks, failing for content marked "bad".
type fakeChunker struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeChunker) Chunk(_ context.Context, content chunker.Content, _ docstore.Kind) ([]chunker.Chunk, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if content.RawText == "bad" {
		return nil, apperr.New(apperr.KindUpstream, "LLM chunking call failed")
	}
	return []chunker.Chunk{
		{OgText: "first segment", EnrichedText: "enriched first", Weight: 2},
		{OgText: "second segment", EnrichedText: "enriched second"},
	}, nil
}

func (f *fakeChunker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakePersister records persisted metadata and can fail its first N calls.
type fakePersister struct {
	mu       sync.Mutex
	failures int
	calls    int
	metas    []map[string]string
}

func (f *fakePersister) Persist(_ context.Context, _ []docstore.Chunk, _ docstore.Kind, metadata map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return apperr.New(apperr.KindPersistence, "vector index unreachable")
	}
	f.metas = append(f.metas, metadata)
	return nil
}

func (f *fakePersister) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRegistry struct {
	mu         sync.Mutex
	registered []registry.Document
	structured map[string]string
}

func (f *fakeRegistry) Register(_ context.Context, doc registry.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, doc)
	return nil
}

func (f *fakeRegistry) SetStructured(_ context.Context, docID, structured string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.structured == nil {
		f.structured = make(map[string]string)
	}
	f.structured[docID] = structured
	return nil
}

// scriptProvider fails its first N completion calls, then returns response.
type scriptProvider struct {
	mu       sync.Mutex
	failures int
	calls    int
	response string
}

func (f *scriptProvider) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("model overloaded")
	}
	return &llm.CompletionResponse{Content: f.response}, nil
}

func (f *scriptProvider) Name() string { return "fake" }

func ingestConfig() config.IngestConfig {
	return config.IngestConfig{MaxAttempts: 2, RetryDelay: 0, MaxConcurrency: 4}
}

func newPipeline(t *testing.T, chk *fakeChunker, store *fakePersister, reg *fakeRegistry, provider llm.Provider) *Pipeline {
	t.Helper()
	lib, err := prompts.Load()
	if err != nil {
		t.Fatalf("loading prompts: %v", err)
	}
	return New(chk, store, reg, provider, lib, ingestConfig(), zap.NewNop())
}

func TestProcessJD(t *testing.T) {
	chk := &fakeChunker{}
	store := &fakePersister{}
	reg := &fakeRegistry{}
	provider := &scriptProvider{response: `{"keywords": ["golang", "distributed systems"]}`}
	p := newPipeline(t, chk, store, reg, provider)

	result, err := p.ProcessJD(context.Background(), chunker.Content{RawText: "we need a gopher"}, "role.md")
	if err != nil {
		t.Fatalf("ProcessJD: %v", err)
	}
	if result.JDID == "" {
		t.Fatal("no JD ID generated")
	}
	if result.Keywords == nil || len(result.Keywords.Keywords) != 2 {
		t.Errorf("keywords = %+v, want 2 entries", result.Keywords)
	}

	if len(store.metas) != 1 {
		t.Fatalf("persist was called %d times, want 1", len(store.metas))
	}
	meta := store.metas[0]
	if meta[metaDocID] != result.JDID || meta[metaFilename] != "role.md" {
		t.Errorf("unexpected chunk metadata: %v", meta)
	}

	if len(reg.registered) != 1 || reg.registered[0].Kind != docstore.KindJD {
		t.Fatalf("unexpected registrations: %+v", reg.registered)
	}
	if !strings.Contains(reg.structured[result.JDID], "golang") {
		t.Errorf("structured JD data = %q, want stored keywords", reg.structured[result.JDID])
	}
}

func TestProcessJDChunkingFailure(t *testing.T) {
	p := newPipeline(t, &fakeChunker{}, &fakePersister{}, &fakeRegistry{}, &scriptProvider{})

	_, err := p.ProcessJD(context.Background(), chunker.Content{RawText: "bad"}, "role.md")
	if err == nil {
		t.Fatal("expected error when chunking fails")
	}
}

func TestProcessJDKeywordFailureIsNotFatal(t *testing.T) {
	chk := &fakeChunker{}
	provider := &scriptProvider{failures: 1}
	p := newPipeline(t, chk, &fakePersister{}, &fakeRegistry{}, provider)

	result, err := p.ProcessJD(context.Background(), chunker.Content{RawText: "we need a gopher"}, "role.md")
	if err != nil {
		t.Fatalf("ProcessJD: %v", err)
	}
	if result.KeywordsError == "" {
		t.Error("keywords error not reported")
	}
	if result.Keywords != nil {
		t.Errorf("keywords = %+v, want none after extraction failure", result.Keywords)
	}
}

func TestProcessCV(t *testing.T) {
	chk := &fakeChunker{}
	store := &fakePersister{}
	reg := &fakeRegistry{}
	provider := &scriptProvider{response: `{"candidate_name": "Jane Doe", "skills": ["go", "sql"]}`}
	p := newPipeline(t, chk, store, reg, provider)

	result, err := p.ProcessCV(context.Background(), chunker.Content{RawText: "resume text"}, "jane.pdf", "jd-1")
	if err != nil {
		t.Fatalf("ProcessCV: %v", err)
	}
	if !result.Success {
		t.Fatalf("result not successful: %+v", result)
	}
	if result.CVData == nil || result.CVData.CandidateName != "Jane Doe" {
		t.Errorf("cv data = %+v", result.CVData)
	}

	meta := store.metas[0]
	if meta[metaJDID] != "jd-1" || meta[metaDocID] != result.CVID {
		t.Errorf("unexpected chunk metadata: %v", meta)
	}
	if len(reg.registered) != 1 || reg.registered[0].AssociatedJD != "jd-1" {
		t.Errorf("unexpected registrations: %+v", reg.registered)
	}
}

func TestProcessCVRequiresJD(t *testing.T) {
	p := newPipeline(t, &fakeChunker{}, &fakePersister{}, &fakeRegistry{}, &scriptProvider{})
	_, err := p.ProcessCV(context.Background(), chunker.Content{RawText: "resume"}, "a.pdf", "")
	if apperr.KindOf(err) != apperr.KindInput {
		t.Errorf("error kind = %v, want input", apperr.KindOf(err))
	}
}

func TestProcessCVRetriesPersistence(t *testing.T) {
	chk := &fakeChunker{}
	store := &fakePersister{failures: 1}
	reg := &fakeRegistry{}
	provider := &scriptProvider{response: `{"candidate_name": "Jane"}`}
	p := newPipeline(t, chk, store, reg, provider)

	result, err := p.ProcessCV(context.Background(), chunker.Content{RawText: "resume"}, "a.pdf", "jd-1")
	if err != nil {
		t.Fatalf("ProcessCV: %v", err)
	}
	if !result.Success {
		t.Fatalf("result not successful after retry: %+v", result)
	}
	// A failed index write reruns the whole sequence, chunking included.
	if chk.callCount() != 2 {
		t.Errorf("chunker called %d times, want 2", chk.callCount())
	}
	if store.callCount() != 2 {
		t.Errorf("persist called %d times, want 2", store.callCount())
	}
}

func TestProcessCVParseFailureKeepsPersistedChunks(t *testing.T) {
	chk := &fakeChunker{}
	store := &fakePersister{}
	reg := &fakeRegistry{}
	provider := &scriptProvider{failures: 2, response: `{}`}
	p := newPipeline(t, chk, store, reg, provider)

	result, err := p.ProcessCV(context.Background(), chunker.Content{RawText: "resume"}, "a.pdf", "jd-1")
	if err != nil {
		t.Fatalf("ProcessCV: %v", err)
	}
	if result.Success {
		t.Fatal("result should not be successful when every parse attempt fails")
	}
	if result.ParseError == "" {
		t.Error("parse error not reported")
	}
	// The successful index write is kept; only the parse is retried.
	if store.callCount() != 1 {
		t.Errorf("persist called %d times, want 1", store.callCount())
	}
	if chk.callCount() != 1 {
		t.Errorf("chunker called %d times, want 1", chk.callCount())
	}
	if len(reg.registered) != 1 {
		t.Errorf("CV not registered despite persisted chunks: %+v", reg.registered)
	}
}

func TestProcessCVPersistFailureExhaustsRetries(t *testing.T) {
	store := &fakePersister{failures: 2}
	p := newPipeline(t, &fakeChunker{}, store, &fakeRegistry{}, &scriptProvider{response: `{}`})

	result, err := p.ProcessCV(context.Background(), chunker.Content{RawText: "resume"}, "a.pdf", "jd-1")
	if err == nil {
		t.Fatal("expected error when persistence never succeeds")
	}
	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}
	if apperr.KindOf(err) != apperr.KindPersistence {
		t.Errorf("error kind = %v, want persistence", apperr.KindOf(err))
	}
}

func TestProcessCVBatch(t *testing.T) {
	chk := &fakeChunker{}
	store := &fakePersister{}
	reg := &fakeRegistry{}
	provider := &scriptProvider{response: `{"candidate_name": "X"}`}
	p := newPipeline(t, chk, store, reg, provider)

	contents := []chunker.Content{
		{RawText: "resume one"},
		{RawText: "bad"},
		{RawText: "resume three"},
	}
	results := p.ProcessCVBatch(context.Background(), contents, []string{"a.pdf", "b.pdf", "c.pdf"}, "jd-1")

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Result == nil || !results[0].Result.Success {
		t.Errorf("first CV should succeed: %+v", results[0])
	}
	if results[1].Error == "" {
		t.Errorf("second CV should carry an error: %+v", results[1])
	}
	if results[2].Result == nil || !results[2].Result.Success {
		t.Errorf("third CV should succeed despite its sibling failing: %+v", results[2])
	}
	if results[0].Result.CVID == results[2].Result.CVID {
		t.Error("batch items share a CV ID")
	}
}
