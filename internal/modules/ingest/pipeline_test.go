package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Iyabivuz-e/SomaAI/internal/config"
	"github.com/Iyabivuz-e/SomaAI/internal/database"
	"github.com/Iyabivuz-e/SomaAI/internal/domain"
	"github.com/Iyabivuz-e/SomaAI/internal/models"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/blobstore"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/retry"
)

type fakeEmbedder struct {
	mu       sync.Mutex
	calls    int
	failOn   map[int]int // call number -> remaining failures
	batchLen []int
}

func (e *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if n := e.failOn[e.calls]; n > 0 {
		return nil, errors.New("embedding service unavailable")
	}
	e.batchLen = append(e.batchLen, len(texts))
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

type fakeVectors struct {
	mu     sync.Mutex
	points map[string]domain.Chunk
	err    error
}

func (v *fakeVectors) Upsert(_ context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.err != nil {
		return v.err
	}
	if v.points == nil {
		v.points = map[string]domain.Chunk{}
	}
	for _, c := range chunks {
		v.points[c.ID] = c
	}
	return nil
}

type memCheckpoint struct {
	done     int
	progress []int
	failSave bool
}

func (m *memCheckpoint) Checkpoint() int { return m.done }

func (m *memCheckpoint) SaveCheckpoint(_ context.Context, n int) error {
	if m.failSave {
		return errors.New("lost ownership")
	}
	m.done = n
	return nil
}

func (m *memCheckpoint) Progress(_ context.Context, pct int) error {
	m.progress = append(m.progress, pct)
	return nil
}

func ingestConfig() config.IngestConfig {
	return config.IngestConfig{ChunkSize: 200, ChunkOverlap: 40, BatchSize: 5, MinAlnumRatio: 0.3, MinQuality: 0.3}
}

func fastRetry() retry.Policy {
	return retry.Policy{Attempts: 3, Base: time.Millisecond, Max: 5 * time.Millisecond}
}

// sourceText yields n paragraphs, each a chunk of its own at size 200.
func sourceText(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Paragraph %d explains how plants turn sunlight, water and carbon dioxide into sugar and oxygen for growth.\n\n", i)
	}
	return b.String()
}

type pipelineEnv struct {
	p        *Pipeline
	db       *gorm.DB
	blobs    *blobstore.Local
	embedder *fakeEmbedder
	vectors  *fakeVectors
}

func newPipelineEnv(t *testing.T) *pipelineEnv {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	blobs, err := blobstore.NewLocal(t.TempDir())
	require.NoError(t, err)
	e := &pipelineEnv{db: db, blobs: blobs, embedder: &fakeEmbedder{}, vectors: &fakeVectors{}}
	e.p = NewPipeline(blobs, e.embedder, e.vectors, db, ingestConfig(), WithRetryPolicy(fastRetry()))
	return e
}

func (e *pipelineEnv) request(t *testing.T, name, body string) Request {
	t.Helper()
	require.NoError(t, e.blobs.Put(context.Background(), "documents/"+name, []byte(body), "text/plain"))
	return Request{
		DocumentID:  "doc-1",
		Fingerprint: "fp-1",
		BlobKey:     "documents/" + name,
		Filename:    name,
		Title:       "Biology S1",
		Grade:       "S1",
		Subject:     "biology",
	}
}

func TestPipelineStoresAllBatches(t *testing.T) {
	e := newPipelineEnv(t)
	req := e.request(t, "bio.txt", sourceText(12)+"\fPage 2\n\n"+sourceText(1))
	cp := &memCheckpoint{}

	res, err := e.p.Run(context.Background(), req, cp)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 13, res.Chunks)
	assert.Equal(t, 3, res.Batches)
	assert.Equal(t, 3, cp.done)
	assert.Equal(t, []int{5, 5, 3}, e.embedder.batchLen)
	assert.Len(t, e.vectors.points, 13)
	assert.Equal(t, 95, cp.progress[len(cp.progress)-1])

	var rows []models.ChunkModel
	require.NoError(t, e.db.Order("chunk_index").Find(&rows).Error)
	require.Len(t, rows, 13)
	assert.Equal(t, domain.ChunkID("fp-1", 0), rows[0].ID)
	assert.Equal(t, 1, rows[0].Page)
	assert.Equal(t, 2, rows[12].Page)
	assert.Equal(t, "S1", rows[12].Grade)
	for _, c := range e.vectors.points {
		assert.Equal(t, "Biology S1", c.Title)
		assert.Equal(t, "biology", c.Subject)
	}
}

func TestPipelineResumesFromCheckpoint(t *testing.T) {
	e := newPipelineEnv(t)
	req := e.request(t, "bio.txt", sourceText(12))
	cp := &memCheckpoint{done: 2}

	res, err := e.p.Run(context.Background(), req, cp)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, []int{2}, e.embedder.batchLen)
	assert.Len(t, e.vectors.points, 2)
	assert.Equal(t, 3, cp.done)
}

func TestPipelineRetriesFailingBatch(t *testing.T) {
	e := newPipelineEnv(t)
	e.embedder.failOn = map[int]int{2: 1, 3: 1}
	req := e.request(t, "bio.txt", sourceText(10))

	res, err := e.p.Run(context.Background(), req, &memCheckpoint{})

	require.NoError(t, err)
	assert.Equal(t, 10, res.Chunks)
	assert.Equal(t, 4, e.embedder.calls)
}

func TestPipelineFailsAfterRetriesKeepingEarlierBatches(t *testing.T) {
	e := newPipelineEnv(t)
	e.embedder.failOn = map[int]int{2: 1, 3: 1, 4: 1}
	req := e.request(t, "bio.txt", sourceText(10))
	cp := &memCheckpoint{}

	_, err := e.p.Run(context.Background(), req, cp)

	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, 1, cp.done)
	var count int64
	require.NoError(t, e.db.Model(&models.ChunkModel{}).Count(&count).Error)
	assert.Equal(t, int64(5), count)

	// The rerun replays nothing already stored and finishes.
	e.embedder.failOn = nil
	res, err := e.p.Run(context.Background(), req, cp)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	require.NoError(t, e.db.Model(&models.ChunkModel{}).Count(&count).Error)
	assert.Equal(t, int64(10), count)
}

func TestPipelinePermanentFailures(t *testing.T) {
	e := newPipelineEnv(t)

	_, err := e.p.Run(context.Background(), Request{BlobKey: "documents/missing.txt", Filename: "missing.txt"}, &memCheckpoint{})
	require.ErrorIs(t, err, domain.ErrPermanent)

	_, err = e.p.Run(context.Background(), Request{BlobKey: "x", Filename: "virus.exe"}, &memCheckpoint{})
	require.ErrorIs(t, err, domain.ErrPermanent)

	req := e.request(t, "empty.txt", "----\n\n====\n\n....")
	_, err = e.p.Run(context.Background(), req, &memCheckpoint{})
	require.ErrorIs(t, err, domain.ErrPermanent)
}
