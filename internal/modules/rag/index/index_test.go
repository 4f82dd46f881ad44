package index

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iyabivuz-e/SomaAI/internal/domain"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/qdrant"
)

func TestUpsertAndQueryMapPayload(t *testing.T) {
	var upserted map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections/c/points":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&upserted))
			_, _ = w.Write([]byte(`{"result":{}}`))
		case "/collections/c/points/search":
			_, _ = w.Write([]byte(`{"result":[{"id":"f1","score":0.82,"payload":{
				"document_id":"D1","title":"Biology S6","grade":"S6","subject":"biology","page":42,"text":"Chlorophyll absorbs light"}}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	idx := New(qdrant.New(qdrant.Config{URL: srv.URL, Collection: "c"}))
	ctx := context.Background()

	chunk := domain.Chunk{ID: "f1", DocumentID: "D1", Grade: "S6", Subject: "biology", Page: 42, Index: 7, Text: "x"}
	require.NoError(t, idx.Upsert(ctx, []domain.Chunk{chunk}, [][]float32{{0.1, 0.2}}))
	points := upserted["points"].([]any)
	require.Len(t, points, 1)
	payload := points[0].(map[string]any)["payload"].(map[string]any)
	assert.EqualValues(t, 42, payload["page"])
	assert.Equal(t, "D1", payload["document_id"])

	frags, err := idx.Query(ctx, []float32{0.1, 0.2}, domain.Scope{Grade: "S6", Subject: "biology"}, 20)
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, domain.RetrievedFragment{
		FragmentID: "f1", DocumentID: "D1", Title: "Biology S6", Page: 42,
		Text: "Chlorophyll absorbs light", Grade: "S6", Subject: "biology", RawSimilarity: 0.82,
	}, frags[0])
}

func TestUpsertRejectsMismatch(t *testing.T) {
	idx := New(qdrant.New(qdrant.Config{URL: "http://unused", Collection: "c"}))
	err := idx.Upsert(context.Background(), []domain.Chunk{{ID: "a"}}, nil)
	assert.Error(t, err)
}
