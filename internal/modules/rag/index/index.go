package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/Iyabivuz-e/SomaAI/internal/domain"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/qdrant"
)

// Payload keys stored with every point.
const (
	keyDocumentID = "document_id"
	keyTitle      = "title"
	keyGrade      = "grade"
	keySubject    = "subject"
	keyPage       = "page"
	keyChunkIndex = "chunk_index"
	keyText       = "text"
)

// Index stores chunk vectors in Qdrant and answers scoped nearest-neighbour queries.
type Index struct {
	client *qdrant.Client
}

func New(client *qdrant.Client) *Index {
	return &Index{client: client}
}

// Ensure creates the collection with payload indexes on the scope fields.
func (i *Index) Ensure(ctx context.Context, dimension int) error {
	return i.client.EnsureCollection(ctx, dimension, keyGrade, keySubject, keyDocumentID)
}

// Upsert writes chunks with their vectors. Chunk ids are stable, so replays overwrite.
func (i *Index) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	points := make([]qdrant.Point, len(chunks))
	for n, c := range chunks {
		points[n] = qdrant.Point{
			ID:     c.ID,
			Vector: vectors[n],
			Payload: map[string]any{
				keyDocumentID: c.DocumentID,
				keyTitle:      c.Title,
				keyGrade:      c.Grade,
				keySubject:    c.Subject,
				keyPage:       c.Page,
				keyChunkIndex: c.Index,
				keyText:       c.Text,
			},
		}
	}
	return i.client.Upsert(ctx, points)
}

// Query returns the k nearest fragments inside scope.
func (i *Index) Query(ctx context.Context, vector []float32, scope domain.Scope, k int) ([]domain.RetrievedFragment, error) {
	filter := &qdrant.Filter{Must: []qdrant.Condition{
		qdrant.FieldEquals(keyGrade, scope.Grade),
		qdrant.FieldEquals(keySubject, scope.Subject),
	}}
	hits, err := i.client.Search(ctx, vector, filter, k)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RetrievedFragment, 0, len(hits))
	for _, h := range hits {
		out = append(out, domain.RetrievedFragment{
			FragmentID:    h.ID,
			DocumentID:    payloadString(h.Payload, keyDocumentID),
			Title:         payloadString(h.Payload, keyTitle),
			Page:          payloadInt(h.Payload, keyPage),
			Text:          payloadString(h.Payload, keyText),
			Grade:         payloadString(h.Payload, keyGrade),
			Subject:       payloadString(h.Payload, keySubject),
			RawSimilarity: h.Score,
		})
	}
	return out, nil
}

// DeleteDocument drops every point of a document.
func (i *Index) DeleteDocument(ctx context.Context, documentID string) error {
	return i.client.DeleteByFilter(ctx, qdrant.Filter{Must: []qdrant.Condition{qdrant.FieldEquals(keyDocumentID, documentID)}})
}

// CountDocument returns how many points a document has in the index.
func (i *Index) CountDocument(ctx context.Context, documentID string) (int, error) {
	n, err := i.client.Count(ctx, qdrant.Filter{Must: []qdrant.Condition{qdrant.FieldEquals(keyDocumentID, documentID)}})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", documentID, err)
	}
	return n, nil
}

// Healthy checks the collection is reachable.
func (i *Index) Healthy(ctx context.Context) error {
	return i.client.Healthy(ctx)
}

func payloadString(p map[string]any, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func payloadInt(p map[string]any, key string) int {
	switch v := p[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
