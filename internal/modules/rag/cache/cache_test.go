package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iyabivuz-e/SomaAI/internal/domain"
	redisc "github.com/Iyabivuz-e/SomaAI/internal/pkg/redis"
)

func newLayer(t *testing.T) (*Layer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return New(redisc.NewFromAddr(mr.Addr())), mr
}

func query(t *testing.T, text string, opts domain.Options) domain.Query {
	t.Helper()
	q, err := domain.NewQuery(text, domain.Scope{Grade: "S6", Subject: "biology"}, domain.ModeStudent, opts)
	require.NoError(t, err)
	return q
}

func TestResponseKeyIsDeterministic(t *testing.T) {
	a := query(t, "What is Photosynthesis?", domain.Options{})
	b := query(t, "  what is   photosynthesis ", domain.Options{})
	c := query(t, "what is photosynthesis", domain.Options{WantAnalogy: true})

	assert.Equal(t, ResponseKey(a), ResponseKey(b))
	assert.NotEqual(t, ResponseKey(a), ResponseKey(c))
	assert.Len(t, ResponseKey(a), 32)
	assert.Equal(t, EmbeddingKey(a.NormalizedText), EmbeddingKey(c.NormalizedText))
}

func TestPutAnswerOnlyPublishesConfidentSufficientAnswers(t *testing.T) {
	layer, _ := newLayer(t)
	ctx := context.Background()
	q := query(t, "how do plants make food", domain.Options{})

	cases := []struct {
		name   string
		answer domain.Answer
		cached bool
	}{
		{"insufficient", domain.InsufficientAnswer(), false},
		{"at threshold", domain.Answer{Text: "x", Sufficient: true, Confidence: 0.7}, false},
		{"partial", domain.Answer{Text: "x", Sufficient: true, Confidence: 0.5}, false},
		{"confident", domain.Answer{MessageID: "msg-1", Text: "x", Sufficient: true, Confidence: 0.82}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.cached, layer.PutAnswer(ctx, q, tc.answer))
		})
	}

	got, ok := layer.GetAnswer(ctx, q)
	require.True(t, ok)
	assert.Equal(t, 0.82, got.Confidence)
	assert.Empty(t, got.MessageID)
}

func TestClassesHaveIndependentTTLs(t *testing.T) {
	layer, mr := newLayer(t)
	ctx := context.Background()
	q := query(t, "what is osmosis", domain.Options{})

	layer.PutEmbedding(ctx, q.NormalizedText, []float32{0.1, 0.2})
	require.True(t, layer.PutAnswer(ctx, q, domain.Answer{Text: "x", Sufficient: true, Confidence: 0.9}))

	assert.Equal(t, time.Hour, mr.TTL(redisKey(ClassEmbedding, EmbeddingKey(q.NormalizedText))))
	assert.Equal(t, 24*time.Hour, mr.TTL(redisKey(ClassResponse, ResponseKey(q))))

	mr.FastForward(2 * time.Hour)
	_, ok := layer.GetEmbedding(ctx, q.NormalizedText)
	assert.False(t, ok)
	_, ok = layer.GetAnswer(ctx, q)
	assert.True(t, ok)
}

func TestEmbeddingRoundTrip(t *testing.T) {
	layer, _ := newLayer(t)
	ctx := context.Background()

	_, ok := layer.GetEmbedding(ctx, "cells")
	assert.False(t, ok)

	layer.PutEmbedding(ctx, "cells", []float32{1, 2, 3})
	vec, ok := layer.GetEmbedding(ctx, "cells")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, vec)
}

func TestInvalidateClassLeavesOtherClass(t *testing.T) {
	layer, _ := newLayer(t)
	ctx := context.Background()
	q := query(t, "what is a cell", domain.Options{})

	layer.PutEmbedding(ctx, q.NormalizedText, []float32{1})
	require.True(t, layer.PutAnswer(ctx, q, domain.Answer{Text: "x", Sufficient: true, Confidence: 0.9}))

	n, err := layer.InvalidateClass(ctx, ClassResponse)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok := layer.GetAnswer(ctx, q)
	assert.False(t, ok)
	_, ok = layer.GetEmbedding(ctx, q.NormalizedText)
	assert.True(t, ok)
}

func TestReadErrorsAreMisses(t *testing.T) {
	layer, mr := newLayer(t)
	q := query(t, "what is a cell", domain.Options{})
	mr.Close()

	_, ok := layer.GetAnswer(context.Background(), q)
	assert.False(t, ok)
}
