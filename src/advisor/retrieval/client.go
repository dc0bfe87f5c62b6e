// Package retrieval wraps the external document-retrieval capability. The
// index itself is built elsewhere; this side only asks for ranked snippets.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Snippet is one ranked piece of supporting text.
type Snippet struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// Client queries the retrieval capability. Failures are expected to be
// non-fatal for callers; the pipeline proceeds without supporting text.
type Client interface {
	Search(ctx context.Context, query string, topK int) ([]Snippet, error)
}

type httpClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPClient talks to a retrieval service at endpoint.
func NewHTTPClient(endpoint string) Client {
	return &httpClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *httpClient) Search(ctx context.Context, query string, topK int) ([]Snippet, error) {
	if topK <= 0 {
		topK = 5
	}
	b, _ := json.Marshal(map[string]any{"query": query, "top_k": topK})
	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("retrieval error (%d): %s", resp.StatusCode, string(body))
	}
	var result struct {
		Results []Snippet `json:"results"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

type noopClient struct{}

// NewNoopClient is used when no retrieval endpoint is configured.
func NewNoopClient() Client { return noopClient{} }

func (noopClient) Search(context.Context, string, int) ([]Snippet, error) {
	return nil, nil
}
