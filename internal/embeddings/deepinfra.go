package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const deepInfraBaseURL = "https://api.deepinfra.com/v1/inference/"

// DeepInfraEmbedder generates embeddings through the DeepInfra inference API
// (BGE-family models). It is the default backend: bge-large-en-v1.5 at 1024
// dimensions.
type DeepInfraEmbedder struct {
	apiKey     string
	model      string
	dimensions int
	httpClient *http.Client
}

// NewDeepInfraEmbedder creates a DeepInfra embedder for the given model. The
// timeout bounds each embedding request.
func NewDeepInfraEmbedder(apiKey, model string, dimensions int, timeout time.Duration) *DeepInfraEmbedder {
	return &DeepInfraEmbedder{
		apiKey:     apiKey,
		model:      model,
		dimensions: dimensions,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (e *DeepInfraEmbedder) Name() string { return e.model }

func (e *DeepInfraEmbedder) Dimensions() int { return e.dimensions }

type deepInfraRequest struct {
	Inputs []string `json:"inputs"`
}

type deepInfraResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (e *DeepInfraEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.apiKey == "" {
		return nil, fmt.Errorf("deepinfra API key is not configured")
	}

	body, err := json.Marshal(deepInfraRequest{Inputs: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal deepinfra request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, deepInfraBaseURL+e.model, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create deepinfra request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepinfra request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read deepinfra response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deepinfra returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp deepInfraResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal deepinfra response: %w", err)
	}
	if len(apiResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("deepinfra returned %d embeddings, expected %d", len(apiResp.Embeddings), len(texts))
	}

	for i, emb := range apiResp.Embeddings {
		if len(emb) != e.dimensions {
			return nil, fmt.Errorf("embedding %d has %d dimensions, expected %d", i, len(emb), e.dimensions)
		}
	}

	return apiResp.Embeddings, nil
}
