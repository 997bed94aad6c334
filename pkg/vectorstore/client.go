package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the semantic retrieval store over its REST API.
// Vectors live in per-team namespaces; metadata carries the document title
// and the passage text.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a new vector store client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Vector is one stored vector with its metadata
type Vector struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Match is one ranked query result
type Match struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type upsertRequest struct {
	Vectors   []Vector `json:"vectors"`
	Namespace string   `json:"namespace,omitempty"`
}

type queryRequest struct {
	Vector          []float32         `json:"vector"`
	TopK            int               `json:"topK"`
	Namespace       string            `json:"namespace,omitempty"`
	Filter          map[string]string `json:"filter,omitempty"`
	IncludeMetadata bool              `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []Match `json:"matches"`
}

// Upsert writes vectors into the given namespace.
func (c *Client) Upsert(ctx context.Context, namespace string, vectors []Vector) error {
	reqBody := upsertRequest{Vectors: vectors, Namespace: namespace}
	return c.post(ctx, "/vectors/upsert", reqBody, &struct{}{})
}

// Query returns the topK nearest matches for the vector, optionally filtered
// by metadata (e.g. company partition).
func (c *Client) Query(ctx context.Context, namespace string, vector []float32, topK int, filter map[string]string) ([]Match, error) {
	reqBody := queryRequest{
		Vector:          vector,
		TopK:            topK,
		Namespace:       namespace,
		Filter:          filter,
		IncludeMetadata: true,
	}

	var apiResp queryResponse
	if err := c.post(ctx, "/query", reqBody, &apiResp); err != nil {
		return nil, err
	}

	return apiResp.Matches, nil
}

func (c *Client) post(ctx context.Context, path string, reqBody, out interface{}) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api error %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}
