package embeddings

import "context"

// Embedder defines the interface for generating text embeddings.
//
// Implementations return errors on backend failures; they never fabricate
// vectors. The zero-vector fallback policy lives in the document store, which
// is the only caller allowed to decide that "no signal" is acceptable.
type Embedder interface {
	// Embed generates embeddings for one or more texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the number of dimensions in the embedding vectors.
	Dimensions() int

	// Name returns the name/identifier of the embedding model.
	Name() string
}
