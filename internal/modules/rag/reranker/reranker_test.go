package reranker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iyabivuz-e/SomaAI/internal/config"
	"github.com/Iyabivuz-e/SomaAI/internal/domain"
)

type fakeScorer struct {
	scores []float64
	err    error
	calls  int
}

func (f *fakeScorer) Score(_ context.Context, _ string, _ []string) ([]float64, error) {
	f.calls++
	return f.scores, f.err
}

func frags(sims ...float64) []domain.RetrievedFragment {
	out := make([]domain.RetrievedFragment, len(sims))
	for i, s := range sims {
		out[i] = domain.RetrievedFragment{
			FragmentID:    string(rune('a' + i)),
			DocumentID:    "doc",
			Page:          i + 1,
			Text:          "text",
			RawSimilarity: s,
		}
	}
	return out
}

func ids(ranked []domain.RankedFragment) []string {
	out := make([]string, len(ranked))
	for i, f := range ranked {
		out[i] = f.FragmentID
	}
	return out
}

func TestRerankStableOnTies(t *testing.T) {
	r := New(&fakeScorer{scores: []float64{0.9, 0.9, 0.7}})

	got := r.Rerank(context.Background(), "q", frags(0.1, 0.2, 0.3))

	assert.Equal(t, []string{"a", "b", "c"}, ids(got))
	assert.Equal(t, 0.9, got[0].RerankScore)
	assert.Equal(t, 0.7, got[2].RerankScore)
}

func TestRerankSortsDescendingAndTruncates(t *testing.T) {
	r := New(&fakeScorer{scores: []float64{0.1, 0.5, 0.9, 0.3, 0.8, 0.7, 0.2}}, WithTopN(3))

	got := r.Rerank(context.Background(), "q", frags(0, 0, 0, 0, 0, 0, 0))

	assert.Equal(t, []string{"c", "e", "f"}, ids(got))
}

func TestRerankDefaultTopN(t *testing.T) {
	r := New(nil)

	got := r.Rerank(context.Background(), "q", frags(0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7))

	require.Len(t, got, DefaultTopN)
	assert.Equal(t, "g", got[0].FragmentID)
}

func TestRerankFallsBackOnScorerError(t *testing.T) {
	r := New(&fakeScorer{err: errors.New("boom")}, WithTopN(2))

	got := r.Rerank(context.Background(), "q", frags(0.4, 0.9, 0.6))

	assert.Equal(t, []string{"a", "b"}, ids(got))
	assert.Equal(t, 0.4, got[0].RerankScore)
	assert.Equal(t, 0.9, got[1].RerankScore)
}

func TestRerankFallsBackOnScoreCountMismatch(t *testing.T) {
	r := New(&fakeScorer{scores: []float64{0.9}})

	got := r.Rerank(context.Background(), "q", frags(0.4, 0.5))

	assert.Equal(t, []string{"a", "b"}, ids(got))
	assert.Equal(t, 0.5, got[1].RerankScore)
}

func TestRerankMinScore(t *testing.T) {
	r := New(&fakeScorer{scores: []float64{0.2, 0.8, 0.5}}, WithMinScore(0.5))

	got := r.Rerank(context.Background(), "q", frags(0, 0, 0))

	assert.Equal(t, []string{"b", "c"}, ids(got))
}

func TestRerankEmpty(t *testing.T) {
	s := &fakeScorer{}
	got := New(s).Rerank(context.Background(), "q", nil)

	assert.Empty(t, got)
	assert.Zero(t, s.calls)
}

func TestTEIScorer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rerank", r.URL.Path)
		var req teiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "what is osmosis", req.Query)
		assert.Len(t, req.Texts, 2)
		_ = json.NewEncoder(w).Encode([]teiResult{{Index: 1, Score: 0.9}, {Index: 0, Score: 0.1}})
	}))
	defer srv.Close()

	scores, err := NewTEIScorer(srv.URL+"/", 0).Score(context.Background(), "what is osmosis", []string{"x", "y"})

	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.9}, scores)
}

func TestTEIScorerMissingIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]teiResult{{Index: 0, Score: 0.1}})
	}))
	defer srv.Close()

	_, err := NewTEIScorer(srv.URL, 0).Score(context.Background(), "q", []string{"x", "y"})

	require.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	_, err := NewFromConfig(config.RerankerConfig{Kind: "tei"})
	require.Error(t, err)

	_, err = NewFromConfig(config.RerankerConfig{Kind: "nope"})
	require.Error(t, err)

	r, err := NewFromConfig(config.RerankerConfig{Kind: "similarity", TopN: 2})
	require.NoError(t, err)
	assert.Len(t, r.Rerank(context.Background(), "q", frags(0.1, 0.2, 0.3)), 2)
}
