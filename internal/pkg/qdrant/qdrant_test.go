package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCollectionCreatesWhenMissing(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"result":true}`))
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, APIKey: "secret", Collection: "docs"})
	require.NoError(t, c.EnsureCollection(context.Background(), 3, "grade"))

	assert.Equal(t, []string{
		"GET /collections/docs",
		"PUT /collections/docs",
		"PUT /collections/docs/index",
	}, calls)
}

func TestSearchSendsFilterAndDecodesHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/docs/points/search", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 2, body["limit"])
		filter := body["filter"].(map[string]any)
		must := filter["must"].([]any)
		require.Len(t, must, 1)
		assert.Equal(t, "grade", must[0].(map[string]any)["key"])

		_, _ = w.Write([]byte(`{"result":[{"id":"p1","score":0.9,"payload":{"text":"hi"}}]}`))
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, Collection: "docs"})
	hits, err := c.Search(context.Background(), []float32{1, 0}, &Filter{Must: []Condition{FieldEquals("grade", "S6")}}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "p1", hits[0].ID)
	assert.Equal(t, 0.9, hits[0].Score)
	assert.Equal(t, "hi", hits[0].Payload["text"])
}

func TestErrorsIncludeStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, Collection: "docs"})
	_, err := c.Count(context.Background(), Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
