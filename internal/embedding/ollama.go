package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOllamaTimeout = 60 * time.Second
	// maxOllamaBody bounds a response read; one 4096-dim vector is well under it.
	maxOllamaBody = 8 << 20
	// errSnippet bounds how much of an error body ends up in a message.
	errSnippet = 256
)

// OllamaClient embeds questions with a local Ollama server.
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// OllamaOption configures an OllamaClient.
type OllamaOption func(*OllamaClient)

// WithHTTPClient replaces the default client and its 60s timeout.
func WithHTTPClient(c *http.Client) OllamaOption {
	return func(o *OllamaClient) { o.client = c }
}

func NewOllamaClient(baseURL, model string, opts ...OllamaOption) *OllamaClient {
	c := &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: defaultOllamaTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *OllamaClient) Model() string { return c.model }

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Embed returns the vector for text. Transport failures, a missing model
// (404) and 5xx responses wrap ErrUnavailable so callers can degrade.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var out embedResponse
	if err := c.call(ctx, http.MethodPost, "/api/embed", embedRequest{Model: c.model, Input: text}, &out); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama embed: empty embedding for model %s", c.model)
	}
	return out.Embeddings[0], nil
}

// HealthCheck reports whether the server is up and has the model pulled.
func (c *OllamaClient) HealthCheck(ctx context.Context) error {
	var tags tagsResponse
	if err := c.call(ctx, http.MethodGet, "/api/tags", nil, &tags); err != nil {
		return fmt.Errorf("ollama health check: %w", err)
	}
	for _, m := range tags.Models {
		if m.Name == c.model || m.Name == c.model+":latest" {
			return nil
		}
	}
	return fmt.Errorf("%w: model %s is not pulled", ErrUnavailable, c.model)
}

func (c *OllamaClient) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxOllamaBody))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, snippet(data))
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("status %d: %s", resp.StatusCode, snippet(data))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > errSnippet {
		s = s[:errSnippet] + "..."
	}
	return s
}
