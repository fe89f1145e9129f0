package docstore

import "strconv"

// Payload field keys shared by both collections.
const (
	fieldDocID        = "original_doc_id"
	fieldChunkIndex   = "chunk_index"
	fieldOgText       = "og_text"
	fieldEnrichedText = "enriched_text"
	fieldTotalChunks  = "total_chunks_for_doc"
	fieldWeight       = "weight"
)

// Chunk is the persistable unit handed to the store: the verbatim segment
// text plus its enriched rendering. Weight 0 means "not supplied"; the store
// applies the JD default at persist time.
type Chunk struct {
	OgText       string
	EnrichedText string
	Weight       int
}

// StoredChunk is a chunk payload read back from the index.
type StoredChunk struct {
	DocID        string
	ChunkIndex   int
	OgText       string
	EnrichedText string
	TotalChunks  int
	// Weight is 0 for CV chunks and for malformed payloads.
	Weight int
	// HasIndex is false when the stored chunk_index is missing or not an
	// integer; such chunks are excluded from ordering-sensitive operations.
	HasIndex bool
	// Score is the similarity annotation; only set on search results.
	Score float32
	// Meta holds the caller-supplied metadata stored alongside the chunk
	// fields (filename, associated JD, ...).
	Meta map[string]string
}

var reservedFields = map[string]bool{
	fieldDocID:        true,
	fieldChunkIndex:   true,
	fieldOgText:       true,
	fieldEnrichedText: true,
	fieldTotalChunks:  true,
	fieldWeight:       true,
}

// payloadToChunk decodes a flat payload map into a StoredChunk.
func payloadToChunk(payload map[string]string) StoredChunk {
	c := StoredChunk{
		DocID:        payload[fieldDocID],
		OgText:       payload[fieldOgText],
		EnrichedText: payload[fieldEnrichedText],
		Meta:         map[string]string{},
	}

	if idx, err := strconv.Atoi(payload[fieldChunkIndex]); err == nil {
		c.ChunkIndex = idx
		c.HasIndex = true
	}
	if total, err := strconv.Atoi(payload[fieldTotalChunks]); err == nil {
		c.TotalChunks = total
	}
	if w, err := strconv.Atoi(payload[fieldWeight]); err == nil {
		c.Weight = w
	}

	for k, v := range payload {
		if !reservedFields[k] {
			c.Meta[k] = v
		}
	}
	return c
}
