package embeddings

import (
	"fmt"
	"os"
	"time"
)

// NewEmbedder creates an embedder for the given provider type and model.
// Supported provider types: "openai", "google", "deepinfra".
func NewEmbedder(providerType, model string, dimensions int, timeout time.Duration) (Embedder, error) {
	switch providerType {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return NewOpenAIEmbedder(apiKey, OpenAIModel(model)), nil

	case "google":
		apiKey := os.Getenv("GEMINI_API_KEY")
		if apiKey == "" {
			apiKey = os.Getenv("GOOGLE_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY environment variable is not set")
		}
		return NewGoogleEmbedder(apiKey, model, dimensions), nil

	case "deepinfra":
		// Key checked at request time so the embedder can still be constructed
		// in environments that never call the backend. A missing key surfaces
		// as an embed failure, which the document store degrades to a zero
		// vector.
		apiKey := os.Getenv("EMBEDDING_MODEL_API")
		return NewDeepInfraEmbedder(apiKey, model, dimensions, timeout), nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider type: %s", providerType)
	}
}
