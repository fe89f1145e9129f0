// Package chunker turns raw documents into ordered, weighted pairs of
// (original, enriched) text segments via an LLM structured-output call.
package chunker

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/apperr"
	"github.com/talentsift/talentsift/internal/docstore"
	"github.com/talentsift/talentsift/internal/llm"
	"github.com/talentsift/talentsift/internal/logger"
	"github.com/talentsift/talentsift/internal/prompts"
)

// Content is the document input: either raw text or base64-encoded binary
// tagged with a MIME type. Exactly one should be supplied; when both are,
// raw text wins and the binary is discarded.
type Content struct {
	RawText string
	Base64  string
	MIME    string
}

// Chunk is one segment of a chunked document. Weight is 0 when the LLM did
// not supply a valid weight; the document store applies the JD default.
type Chunk struct {
	OgText       string
	EnrichedText string
	Weight       int
}

// Chunker chunks documents with an LLM.
type Chunker struct {
	provider llm.Provider
	library  *prompts.Library
	log      *zap.Logger
}

// New creates a Chunker.
func New(provider llm.Provider, library *prompts.Library, log *zap.Logger) *Chunker {
	return &Chunker{provider: provider, library: library, log: log}
}

// Chunk splits the document into enriched segments. All failure modes
// (missing input, LLM error, unparseable output, zero surviving chunks)
// return a nil slice and an error; callers treat them uniformly as "the
// document could not be chunked".
func (c *Chunker) Chunk(ctx context.Context, content Content, kind docstore.Kind) ([]Chunk, error) {
	if content.RawText == "" && content.Base64 == "" {
		c.log.Error("no content provided for chunking")
		return nil, apperr.New(apperr.KindInput, "either raw text or base64 content must be provided")
	}
	if content.RawText != "" && content.Base64 != "" {
		c.log.Warn("both raw text and base64 content provided, prioritizing raw text")
		content.Base64 = ""
	}

	template := prompts.CVEnrich
	if kind == docstore.KindJD {
		template = prompts.JDEnrich
	}
	promptText, err := c.library.Text(template)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "loading chunking prompt")
	}

	msg := llm.Message{Role: llm.RoleUser}
	if content.RawText != "" {
		msg.Content = promptText + "\n\n" + content.RawText
	} else {
		msg.Content = promptText
		msg.Attachment = &llm.Attachment{MIME: content.MIME, Base64: content.Base64}
	}

	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{msg},
		Temperature: 0,
		JSONMode:    true,
	})
	if err != nil {
		c.log.Error("LLM chunking call failed", zap.Error(err))
		return nil, apperr.Wrap(apperr.KindUpstream, err, "LLM chunking call failed")
	}

	raw := sanitize(resp.Content)
	c.log.Debug("chunking response",
		zap.String("provider", c.provider.Name()),
		zap.String("preview", logger.Truncate(raw, 500)))

	chunks, err := c.parse(raw)
	if err != nil {
		c.log.Error("failed to parse chunking response",
			zap.Error(err),
			zap.String("preview", logger.Truncate(raw, 500)))
		return nil, err
	}

	c.log.Info("document chunked", zap.Int("chunks", len(chunks)))
	return chunks, nil
}

// sanitize strips markdown code fences and Unicode control characters.
// LLMs occasionally emit stray control bytes that break strict JSON parsing.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if isControl(r) {
			return -1
		}
		return r
	}, llm.StripFences(s))
}

// isControl reports whether r falls in the Unicode "C" categories
// (control, format, surrogate, private use).
func isControl(r rune) bool {
	switch {
	case r < 0x20, r == 0x7f: // Cc
		return true
	case r >= 0x80 && r <= 0x9f: // Cc
		return true
	case r >= 0xd800 && r <= 0xdfff: // Cs
		return true
	case r >= 0xe000 && r <= 0xf8ff: // Co
		return true
	case r == 0xad, r == 0x200b, r == 0x200c, r == 0x200d, r == 0x2060, r == 0xfeff: // common Cf
		return true
	}
	return false
}

type rawChunk struct {
	OgContent       *string     `json:"og_content"`
	EnrichedContent *string     `json:"enriched_content"`
	Weight          json.Number `json:"weight"`
}

// parse decodes the chunk-N keyed JSON object, orders the keys by their
// numeric suffix, and validates each chunk.
func (c *Chunker) parse(raw string) ([]Chunk, error) {
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, err, "chunking response is not valid JSON")
	}
	if len(parsed) == 0 {
		return nil, apperr.New(apperr.KindUpstream, "LLM returned an empty JSON object for chunking")
	}

	type keyed struct {
		key string
		n   int
	}
	var keys []keyed
	for key := range parsed {
		suffix := key[strings.LastIndex(key, "-")+1:]
		n, err := strconv.Atoi(suffix)
		if err != nil {
			c.log.Warn("skipping chunk key without numeric suffix", zap.String("key", key))
			continue
		}
		keys = append(keys, keyed{key: key, n: n})
	}
	// chunk-10 sorts after chunk-9, not after chunk-1.
	sort.Slice(keys, func(i, j int) bool { return keys[i].n < keys[j].n })

	var chunks []Chunk
	for _, k := range keys {
		var rc rawChunk
		if err := json.Unmarshal(parsed[k.key], &rc); err != nil {
			c.log.Warn("skipping malformed chunk object",
				zap.String("key", k.key), zap.Error(err))
			continue
		}
		if rc.OgContent == nil || rc.EnrichedContent == nil {
			c.log.Warn("skipping chunk missing og_content or enriched_content",
				zap.String("key", k.key))
			continue
		}

		chunk := Chunk{OgText: *rc.OgContent, EnrichedText: *rc.EnrichedContent}
		if rc.Weight != "" {
			if w, err := rc.Weight.Int64(); err == nil && w >= 1 && w <= 3 {
				chunk.Weight = int(w)
			} else {
				c.log.Warn("chunk has invalid or out-of-range weight, ignoring it",
					zap.String("key", k.key), zap.String("weight", rc.Weight.String()))
			}
		}
		chunks = append(chunks, chunk)
	}

	if len(chunks) == 0 {
		return nil, apperr.New(apperr.KindUpstream, "no valid chunk objects in LLM response")
	}
	return chunks, nil
}

// ToStoreChunks converts chunker output into the document store's input type.
func ToStoreChunks(chunks []Chunk) []docstore.Chunk {
	out := make([]docstore.Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = docstore.Chunk{OgText: c.OgText, EnrichedText: c.EnrichedText, Weight: c.Weight}
	}
	return out
}
