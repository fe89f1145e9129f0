package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const googleEmbedEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:embedContent?key=%s"

// GoogleEmbedder generates embeddings using Google's Generative AI API.
type GoogleEmbedder struct {
	apiKey     string
	model      string
	dimensions int
	httpClient *http.Client
}

// NewGoogleEmbedder creates a new Google embedder.
func NewGoogleEmbedder(apiKey, model string, dimensions int) *GoogleEmbedder {
	return &GoogleEmbedder{
		apiKey:     apiKey,
		model:      model,
		dimensions: dimensions,
		httpClient: &http.Client{},
	}
}

func (e *GoogleEmbedder) Name() string { return e.model }

func (e *GoogleEmbedder) Dimensions() int { return e.dimensions }

type googleEmbedRequest struct {
	Content              googleContent `json:"content"`
	OutputDimensionality int           `json:"outputDimensionality,omitempty"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleEmbedResponse struct {
	Embedding *googleEmbeddingValues `json:"embedding"`
	Error     *googleAPIError        `json:"error,omitempty"`
}

type googleEmbeddingValues struct {
	Values []float32 `json:"values"`
}

type googleAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (e *GoogleEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// The embedContent endpoint takes one text per call.
	results := make([][]float32, 0, len(texts))
	for i, text := range texts {
		vec, err := e.embedOne(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		results = append(results, vec)
	}
	return results, nil
}

func (e *GoogleEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	apiReq := googleEmbedRequest{
		Content:              googleContent{Parts: []googlePart{{Text: text}}},
		OutputDimensionality: e.dimensions,
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal google embed request: %w", err)
	}

	url := fmt.Sprintf(googleEmbedEndpoint, e.model, e.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create google embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google embed request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read google embed response: %w", err)
	}

	var apiResp googleEmbedResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal google embed response: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("google API error (%s): %s", apiResp.Error.Status, apiResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google returned status %d: %s", resp.StatusCode, string(respBody))
	}
	if apiResp.Embedding == nil || len(apiResp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("google returned no embedding values")
	}
	if len(apiResp.Embedding.Values) != e.dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(apiResp.Embedding.Values), e.dimensions)
	}

	return apiResp.Embedding.Values, nil
}
