package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultQdrantTimeout = 30 * time.Second
	maxQdrantBody        = 16 << 20
)

// QdrantClient is a minimal client for the Qdrant REST API: one collection
// per index, cosine distance, string point ids.
type QdrantClient struct {
	baseURL   string
	apiKey    string
	dimension int
	client    *http.Client
}

// QdrantOption configures a QdrantClient.
type QdrantOption func(*QdrantClient)

// WithAPIKey sends key in the api-key header, as hosted Qdrant requires.
func WithAPIKey(key string) QdrantOption {
	return func(c *QdrantClient) { c.apiKey = key }
}

func NewQdrantClient(baseURL string, dimension int, opts ...QdrantOption) *QdrantClient {
	c := &QdrantClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		dimension: dimension,
		client:    &http.Client{Timeout: defaultQdrantTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Point is one stored vector.
type Point struct {
	ID     string    `json:"id"`
	Vector []float32 `json:"vector"`
}

// statusError carries a non-2xx Qdrant response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

func hasStatus(err error, code int) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == code
}

func (c *QdrantClient) HealthCheck(ctx context.Context) error {
	if err := c.call(ctx, http.MethodGet, "/healthz", nil, nil); err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	return nil
}

// EnsureCollection creates the collection unless it already exists.
func (c *QdrantClient) EnsureCollection(ctx context.Context, name string) error {
	body := map[string]any{
		"vectors": map[string]any{"size": c.dimension, "distance": "Cosine"},
	}
	err := c.call(ctx, http.MethodPut, collectionPath(name), body, nil)
	if err != nil && !hasStatus(err, http.StatusConflict) {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

// DeleteCollection drops the collection. A missing collection is not an error.
func (c *QdrantClient) DeleteCollection(ctx context.Context, name string) error {
	err := c.call(ctx, http.MethodDelete, collectionPath(name), nil, nil)
	if err != nil && !hasStatus(err, http.StatusNotFound) {
		return fmt.Errorf("delete collection %s: %w", name, err)
	}
	return nil
}

func (c *QdrantClient) Upsert(ctx context.Context, collection string, points []Point) error {
	return c.call(ctx, http.MethodPut, collectionPath(collection)+"/points?wait=true",
		map[string]any{"points": points}, nil)
}

func (c *QdrantClient) DeletePoints(ctx context.Context, collection string, ids []string) error {
	return c.call(ctx, http.MethodPost, collectionPath(collection)+"/points/delete?wait=true",
		map[string]any{"points": ids}, nil)
}

// Search returns up to limit nearest points, best first.
func (c *QdrantClient) Search(ctx context.Context, collection string, vector []float32, limit int) ([]Result, error) {
	var hits []Result
	err := c.call(ctx, http.MethodPost, collectionPath(collection)+"/points/search",
		map[string]any{"vector": vector, "limit": limit, "with_payload": false}, &hits)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}
	return hits, nil
}

func collectionPath(name string) string {
	return "/collections/" + url.PathEscape(name)
}

// call sends in as JSON and decodes the "result" field of the response
// envelope into out. Either may be nil.
func (c *QdrantClient) call(ctx context.Context, method, path string, in, out any) error {
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
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxQdrantBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	envelope := struct {
		Result any `json:"result"`
	}{Result: out}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
