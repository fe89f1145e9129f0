package chunker

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/apperr"
	"github.com/talentsift/talentsift/internal/docstore"
	"github.com/talentsift/talentsift/internal/llm"
	"github.com/talentsift/talentsift/internal/prompts"
)

type fakeProvider struct {
	response string
	err      error
	requests []llm.CompletionRequest
}

func (f *fakeProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.response}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func newChunker(t *testing.T, p llm.Provider) *Chunker {
	t.Helper()
	lib, err := prompts.Load()
	if err != nil {
		t.Fatalf("loading prompts: %v", err)
	}
	return New(p, lib, zap.NewNop())
}

func TestChunkParsesAndOrdersNumerically(t *testing.T) {
	p := &fakeProvider{response: `{
		"chunk-2": {"og_content": "second", "enriched_content": "e2"},
		"chunk-10": {"og_content": "tenth", "enriched_content": "e10", "weight": 3},
		"chunk-1": {"og_content": "first", "enriched_content": "e1", "weight": 2}
	}`}
	c := newChunker(t, p)

	chunks, err := c.Chunk(context.Background(), Content{RawText: "some document"}, docstore.KindJD)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	want := []string{"first", "second", "tenth"}
	for i, w := range want {
		if chunks[i].OgText != w {
			t.Errorf("chunk %d og text = %q, want %q", i, chunks[i].OgText, w)
		}
	}
	if chunks[0].Weight != 2 || chunks[1].Weight != 0 || chunks[2].Weight != 3 {
		t.Errorf("weights = %d,%d,%d, want 2,0,3", chunks[0].Weight, chunks[1].Weight, chunks[2].Weight)
	}
}

func TestChunkRequestUsesJSONMode(t *testing.T) {
	p := &fakeProvider{response: `{"chunk-1": {"og_content": "a", "enriched_content": "b"}}`}
	c := newChunker(t, p)

	if _, err := c.Chunk(context.Background(), Content{RawText: "doc"}, docstore.KindCV); err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(p.requests) != 1 {
		t.Fatalf("got %d requests, want 1", len(p.requests))
	}
	req := p.requests[0]
	if !req.JSONMode {
		t.Error("request should set JSONMode")
	}
	if req.Temperature != 0 {
		t.Errorf("temperature = %v, want 0", req.Temperature)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != llm.RoleUser {
		t.Fatalf("expected a single user message, got %+v", req.Messages)
	}
}

func TestChunkStripsCodeFences(t *testing.T) {
	p := &fakeProvider{response: "```json\n{\"chunk-1\": {\"og_content\": \"a\", \"enriched_content\": \"b\"}}\n```"}
	c := newChunker(t, p)

	chunks, err := c.Chunk(context.Background(), Content{RawText: "doc"}, docstore.KindCV)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 1 || chunks[0].OgText != "a" {
		t.Fatalf("unexpected chunks: %+v", chunks)
	}
}

func TestChunkRemovesControlCharacters(t *testing.T) {
	p := &fakeProvider{response: "{\"chunk-1\": {\"og_content\": \"a\u200bb\", \"enriched_content\": \"c\"}}\x00"}
	c := newChunker(t, p)

	chunks, err := c.Chunk(context.Background(), Content{RawText: "doc"}, docstore.KindCV)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if chunks[0].OgText != "ab" {
		t.Errorf("og text = %q, want control characters stripped", chunks[0].OgText)
	}
}

func TestChunkDropsInvalidChunks(t *testing.T) {
	p := &fakeProvider{response: `{
		"chunk-1": {"og_content": "good", "enriched_content": "e"},
		"chunk-2": {"og_content": "missing enriched"},
		"chunk-3": {"og_content": 42, "enriched_content": "e"},
		"chunk-abc": {"og_content": "bad key", "enriched_content": "e"},
		"chunk-4": {"og_content": "odd weight", "enriched_content": "e", "weight": 7},
		"chunk-5": {"og_content": "float weight", "enriched_content": "e", "weight": 2.5}
	}`}
	c := newChunker(t, p)

	chunks, err := c.Chunk(context.Background(), Content{RawText: "doc"}, docstore.KindJD)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3: %+v", len(chunks), chunks)
	}
	for _, ch := range chunks {
		if ch.Weight != 0 {
			t.Errorf("chunk %q weight = %d, want 0 (out-of-range and non-integer weights dropped)", ch.OgText, ch.Weight)
		}
	}
}

func TestChunkFailureModes(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		content  Content
		kind     apperr.Kind
	}{
		{
			name:     "no input",
			provider: &fakeProvider{},
			content:  Content{},
			kind:     apperr.KindInput,
		},
		{
			name:     "provider error",
			provider: &fakeProvider{err: errors.New("boom")},
			content:  Content{RawText: "doc"},
			kind:     apperr.KindUpstream,
		},
		{
			name:     "not JSON",
			provider: &fakeProvider{response: "I cannot chunk this document."},
			content:  Content{RawText: "doc"},
			kind:     apperr.KindUpstream,
		},
		{
			name:     "empty object",
			provider: &fakeProvider{response: "{}"},
			content:  Content{RawText: "doc"},
			kind:     apperr.KindUpstream,
		},
		{
			name:     "no valid chunks",
			provider: &fakeProvider{response: `{"chunk-1": {"og_content": "only og"}}`},
			content:  Content{RawText: "doc"},
			kind:     apperr.KindUpstream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newChunker(t, tt.provider)
			chunks, err := c.Chunk(context.Background(), tt.content, docstore.KindCV)
			if err == nil {
				t.Fatal("expected error")
			}
			if chunks != nil {
				t.Errorf("chunks = %+v, want nil", chunks)
			}
			if got := apperr.KindOf(err); got != tt.kind {
				t.Errorf("error kind = %q, want %q", got, tt.kind)
			}
		})
	}
}

func TestChunkPrefersRawTextOverBase64(t *testing.T) {
	p := &fakeProvider{response: `{"chunk-1": {"og_content": "a", "enriched_content": "b"}}`}
	c := newChunker(t, p)

	content := Content{RawText: "the text", Base64: "cGRmIGJ5dGVz", MIME: "application/pdf"}
	if _, err := c.Chunk(context.Background(), content, docstore.KindCV); err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	msg := p.requests[0].Messages[0]
	if msg.Attachment != nil {
		t.Error("attachment should be dropped when raw text is provided")
	}
}

func TestChunkSendsAttachmentForBase64(t *testing.T) {
	p := &fakeProvider{response: `{"chunk-1": {"og_content": "a", "enriched_content": "b"}}`}
	c := newChunker(t, p)

	content := Content{Base64: "cGRmIGJ5dGVz", MIME: "application/pdf"}
	if _, err := c.Chunk(context.Background(), content, docstore.KindCV); err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	msg := p.requests[0].Messages[0]
	if msg.Attachment == nil || msg.Attachment.MIME != "application/pdf" {
		t.Fatalf("expected a PDF attachment, got %+v", msg.Attachment)
	}
}
