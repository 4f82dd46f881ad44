package reranker

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

	"github.com/Iyabivuz-e/SomaAI/internal/config"
)

// TEIScorer calls a text-embeddings-inference style POST /rerank endpoint.
type TEIScorer struct {
	endpoint string
	client   *http.Client
}

func NewTEIScorer(endpoint string, timeout time.Duration) *TEIScorer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TEIScorer{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

type teiRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
	Truncate  bool     `json:"truncate"`
}

type teiResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

func (s *TEIScorer) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	body, err := json.Marshal(teiRequest{Query: query, Texts: texts, Truncate: true})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank endpoint: %s %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var results []teiResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	scores := make([]float64, len(texts))
	seen := make([]bool, len(texts))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(texts) || seen[r.Index] {
			return nil, fmt.Errorf("rerank response has invalid index %d", r.Index)
		}
		seen[r.Index] = true
		scores[r.Index] = r.Score
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("rerank response missing index %d", i)
		}
	}
	return scores, nil
}

// NewFromConfig builds the reranker selected by cfg.Kind.
func NewFromConfig(cfg config.RerankerConfig, opts ...Option) (*Reranker, error) {
	opts = append([]Option{WithTopN(cfg.TopN), WithMinScore(cfg.MinScore)}, opts...)
	switch cfg.Kind {
	case "similarity", "":
		return New(nil, opts...), nil // ranks on vector similarity
	case "tei":
		if strings.TrimSpace(cfg.Endpoint) == "" {
			return nil, errors.New("reranker.endpoint is required for kind tei")
		}
		return New(NewTEIScorer(cfg.Endpoint, cfg.Timeout), opts...), nil
	default:
		return nil, fmt.Errorf("unsupported reranker kind %q", cfg.Kind)
	}
}
