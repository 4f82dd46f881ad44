package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("qdrant: not found")

// Client is a minimal REST client for one Qdrant collection using cosine distance.
type Client struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Point is a vector with its payload.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ScoredPoint is a search hit.
type ScoredPoint struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Match is an exact value condition.
type Match struct {
	Value any `json:"value"`
}

// Condition filters on one payload field.
type Condition struct {
	Key   string `json:"key"`
	Match Match  `json:"match"`
}

// Filter combines conditions; all of Must have to hold.
type Filter struct {
	Must []Condition `json:"must,omitempty"`
}

// FieldEquals builds a match condition.
func FieldEquals(key string, value any) Condition {
	return Condition{Key: key, Match: Match{Value: value}}
}

// EnsureCollection creates the collection and keyword payload indexes when missing.
func (c *Client) EnsureCollection(ctx context.Context, dimension int, indexedFields ...string) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	err := c.do(ctx, http.MethodGet, c.collectionURL(""), nil, nil)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if err := c.do(ctx, http.MethodPut, c.collectionURL(""), body, nil); err != nil {
		return err
	}
	for _, field := range indexedFields {
		idx := map[string]any{"field_name": field, "field_schema": "keyword"}
		if err := c.do(ctx, http.MethodPut, c.collectionURL("/index?wait=true"), idx, nil); err != nil {
			return fmt.Errorf("create payload index %s: %w", field, err)
		}
	}
	return nil
}

// Upsert writes points, overwriting any with the same id.
func (c *Client) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPut, c.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil)
}

// Search returns the limit nearest points matching filter.
func (c *Client) Search(ctx context.Context, vector []float32, filter *Filter, limit int) ([]ScoredPoint, error) {
	if limit <= 0 {
		limit = 10
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if filter != nil && len(filter.Must) > 0 {
		req["filter"] = filter
	}
	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, c.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	out := make([]ScoredPoint, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, ScoredPoint{ID: fmt.Sprint(r.ID), Score: r.Score, Payload: r.Payload})
	}
	return out, nil
}

// DeleteByFilter removes every point matching filter.
func (c *Client) DeleteByFilter(ctx context.Context, filter Filter) error {
	return c.do(ctx, http.MethodPost, c.collectionURL("/points/delete?wait=true"), map[string]any{"filter": filter}, nil)
}

// Count returns the exact number of points matching filter.
func (c *Client) Count(ctx context.Context, filter Filter) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	body := map[string]any{"filter": filter, "exact": true}
	if err := c.do(ctx, http.MethodPost, c.collectionURL("/points/count"), body, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Healthy pings the collection.
func (c *Client) Healthy(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.collectionURL(""), nil, nil)
}

func (c *Client) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", c.url, c.collection, suffix)
}

func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("qdrant %s %s failed: %s %s", method, url, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
