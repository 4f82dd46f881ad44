package ingest

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Iyabivuz-e/SomaAI/internal/config"
	"github.com/Iyabivuz-e/SomaAI/internal/domain"
	"github.com/Iyabivuz-e/SomaAI/internal/models"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/blobstore"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/embedding"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/retry"
)

// VectorStore receives embedded chunks.
type VectorStore interface {
	Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
}

// Checkpoint is where a run records batches done and progress.
type Checkpoint interface {
	Checkpoint() int
	SaveCheckpoint(ctx context.Context, batchesDone int) error
	Progress(ctx context.Context, pct int) error
}

// Request identifies one document to ingest.
type Request struct {
	DocumentID  string `json:"document_id"`
	Fingerprint string `json:"fingerprint"`
	BlobKey     string `json:"blob_key"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Grade       string `json:"grade"`
	Subject     string `json:"subject"`
}

type Result struct {
	Pages   int `json:"pages"`
	Chunks  int `json:"chunks"`
	Batches int `json:"batches"`
	Skipped int `json:"skipped_batches"`
}

// Pipeline is Load, Split, Filter, Enrich, Store.
type Pipeline struct {
	blobs    blobstore.Store
	embedder embedding.Embedder
	vectors  VectorStore
	db       *gorm.DB
	cfg      config.IngestConfig
	retry    retry.Policy
	logger   *zap.Logger
}

type Option func(*Pipeline)

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l.Named("ingest") }
}

func WithRetryPolicy(r retry.Policy) Option {
	return func(p *Pipeline) { p.retry = r }
}

func NewPipeline(blobs blobstore.Store, embedder embedding.Embedder, vectors VectorStore, db *gorm.DB, cfg config.IngestConfig, opts ...Option) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	p := &Pipeline{
		blobs:    blobs,
		embedder: embedder,
		vectors:  vectors,
		db:       db,
		cfg:      cfg,
		retry:    retry.Default,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run ingests req. Batches below cp.Checkpoint() were stored by an earlier
// attempt and are skipped; chunk ids are deterministic so replays are harmless.
func (p *Pipeline) Run(ctx context.Context, req Request, cp Checkpoint) (Result, error) {
	log := p.logger.With(zap.String("document_id", req.DocumentID), zap.String("filename", req.Filename))

	format, err := DetectFormat(req.Filename, req.ContentType)
	if err != nil {
		return Result{}, domain.Permanent(err)
	}
	data, err := p.blobs.Get(ctx, req.BlobKey)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return Result{}, domain.Permanent(fmt.Errorf("source file %s: %w", req.BlobKey, err))
		}
		return Result{}, fmt.Errorf("load source file: %w", err)
	}
	pages, err := Load(format, data)
	if err != nil {
		return Result{}, domain.Permanent(err)
	}
	p.progress(ctx, cp, 10, log)

	chunks := p.chunk(req, pages)
	p.progress(ctx, cp, 40, log)
	if len(chunks) == 0 {
		return Result{Pages: len(pages)}, domain.Permanent(errors.New("no usable text extracted"))
	}

	size := p.cfg.BatchSize
	total := (len(chunks) + size - 1) / size
	done := cp.Checkpoint()
	if done > 0 {
		log.Info("resuming from checkpoint", zap.Int("batches_done", done), zap.Int("batches", total))
	}

	for b := done; b < total; b++ {
		end := min((b+1)*size, len(chunks))
		batch := chunks[b*size : end]

		err := retry.Do(ctx, p.retry, func() error {
			return p.storeBatch(ctx, batch)
		})
		if err != nil {
			return Result{}, fmt.Errorf("store batch %d/%d: %w", b+1, total, err)
		}
		if err := cp.SaveCheckpoint(ctx, b+1); err != nil {
			return Result{}, err
		}
		p.progress(ctx, cp, 40+55*(b+1)/total, log)
	}

	log.Info("document ingested", zap.Int("pages", len(pages)), zap.Int("chunks", len(chunks)), zap.Int("batches", total))
	return Result{Pages: len(pages), Chunks: len(chunks), Batches: total, Skipped: min(done, total)}, nil
}

// chunk runs Split, Filter and Enrich. Chunk indexes are sequential over
// the kept pieces of the whole document.
func (p *Pipeline) chunk(req Request, pages []Page) []domain.Chunk {
	splitter := NewSplitter(p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	filter := Filter{MinAlnumRatio: p.cfg.MinAlnumRatio, MinQuality: p.cfg.MinQuality}

	var chunks []domain.Chunk
	for _, page := range pages {
		for _, piece := range splitter.Split(page.Text) {
			cleaned, score, ok := filter.Keep(piece)
			if !ok {
				continue
			}
			idx := len(chunks)
			chunks = append(chunks, domain.Chunk{
				ID:           domain.ChunkID(req.Fingerprint, idx),
				DocumentID:   req.DocumentID,
				Title:        req.Title,
				Grade:        req.Grade,
				Subject:      req.Subject,
				Page:         page.Number,
				Index:        idx,
				Text:         cleaned,
				QualityScore: score,
			})
		}
	}
	return chunks
}

func (p *Pipeline) storeBatch(ctx context.Context, batch []domain.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embed: got %d vectors for %d chunks", len(vectors), len(batch))
	}
	if err := p.vectors.Upsert(ctx, batch, vectors); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}

	rows := make([]models.ChunkModel, len(batch))
	for i, c := range batch {
		rows[i] = models.ChunkModel{
			ID:           c.ID,
			DocumentID:   c.DocumentID,
			ChunkIndex:   c.Index,
			Page:         c.Page,
			Content:      truncateRunes(c.Text, models.MaxChunkContent),
			QualityScore: c.QualityScore,
			Grade:        c.Grade,
			Subject:      c.Subject,
		}
	}
	if err := p.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}
	return nil
}

func (p *Pipeline) progress(ctx context.Context, cp Checkpoint, pct int, log *zap.Logger) {
	if err := cp.Progress(ctx, pct); err != nil {
		log.Warn("progress update failed", zap.Int("pct", pct), zap.Error(err))
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
