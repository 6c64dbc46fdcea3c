// Package embedclient implements vectorindex.Embedder against an
// OpenAI-compatible HTTP embeddings endpoint, the shape served by most
// self-hosted and cloud embedding servers alike. The model id from the
// package manifest's "embedding" field is passed through verbatim as the
// request's "model" field, same as sentence-transformers model ids are
// passed straight to the encoder in the original implementation.
package embedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

const defaultBaseURL = "http://127.0.0.1:11434/v1"

// Client calls POST <baseURL>/embeddings with {"model", "input"} and reads
// back the first embedding vector.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// New returns a Client for modelID. The endpoint defaults to a local
// Ollama-style OpenAI-compatible server but is overridden by the
// DOCINDEX_EMBEDDING_BASE_URL environment variable; an API key, if
// required by the endpoint, comes from DOCINDEX_EMBEDDING_API_KEY.
func New(modelID string) *Client {
	baseURL := os.Getenv("DOCINDEX_EMBEDDING_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     os.Getenv("DOCINDEX_EMBEDDING_API_KEY"),
		model:      modelID,
	}
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed requests the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedclient: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedclient: %s returned %s", c.baseURL, resp.Status)
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("embedclient: decode response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("embedclient: empty response from %s", c.baseURL)
	}
	return parsed.Data[0].Embedding, nil
}
