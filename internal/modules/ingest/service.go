package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Iyabivuz-e/SomaAI/internal/domain"
	"github.com/Iyabivuz-e/SomaAI/internal/models"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/fingerprint"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/jobs"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/rag/cache"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/blobstore"
)

// CacheInvalidator drops a whole cache class.
type CacheInvalidator interface {
	InvalidateClass(ctx context.Context, class cache.Class) (int, error)
}

// Upload is a submitted source file.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
	Title       string
	Grade       string
	Subject     string
	ActorID     string
}

type Service struct {
	db           *gorm.DB
	blobs        blobstore.Store
	jobs         *jobs.Service
	fingerprints *fingerprint.Store
	pipeline     *Pipeline
	cache        CacheInvalidator
	logger       *zap.Logger
}

type ServiceOption func(*Service)

func WithServiceLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l.Named("ingest") }
}

// WithCacheInvalidator drops cached answers after each successful ingestion.
func WithCacheInvalidator(c CacheInvalidator) ServiceOption {
	return func(s *Service) { s.cache = c }
}

func NewService(db *gorm.DB, blobs blobstore.Store, js *jobs.Service, fps *fingerprint.Store, pipeline *Pipeline, opts ...ServiceOption) *Service {
	s := &Service{
		db:           db,
		blobs:        blobs,
		jobs:         js,
		fingerprints: fps,
		pipeline:     pipeline,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	js.RegisterHandler(models.JobKindIngest, s.handle)
	return s
}

// Submit stores the file and enqueues its ingestion. An identical file that
// is already queued, running or done yields the existing job with created=false.
func (s *Service) Submit(ctx context.Context, up Upload) (*models.JobModel, bool, error) {
	if len(up.Data) == 0 {
		return nil, false, domain.Invalid("file", "is empty")
	}
	if _, err := DetectFormat(up.Filename, up.ContentType); err != nil {
		return nil, false, domain.Invalid("file", "unsupported format, use pdf, docx, md, html or txt")
	}
	scope := domain.NormalizeScope(domain.Scope{Grade: up.Grade, Subject: up.Subject})
	if err := scope.Validate(); err != nil {
		return nil, false, err
	}
	title := strings.TrimSpace(up.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(up.Filename), filepath.Ext(up.Filename))
	}

	fp := fingerprint.Compute(up.Data)
	key := "documents/" + fp + strings.ToLower(filepath.Ext(up.Filename))
	if err := s.blobs.Put(ctx, key, up.Data, up.ContentType); err != nil {
		return nil, false, fmt.Errorf("store upload: %w", err)
	}

	docID := uuid.NewString()
	var existing models.DocumentModel
	err := s.db.WithContext(ctx).Select("id").Where("fingerprint = ?", fp).Take(&existing).Error
	switch {
	case err == nil:
		docID = existing.ID
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, err
	}

	req := Request{
		DocumentID:  docID,
		Fingerprint: fp,
		BlobKey:     key,
		Filename:    filepath.Base(up.Filename),
		ContentType: up.ContentType,
		Title:       title,
		Grade:       scope.Grade,
		Subject:     scope.Subject,
	}
	return s.jobs.Submit(ctx, jobs.SubmitRequest{
		Kind:        models.JobKindIngest,
		Payload:     req,
		Fingerprint: fp,
		ActorID:     up.ActorID,
		OnCreate: func(tx *gorm.DB, _ *models.JobModel) error {
			// A fingerprint whose last job failed reuses its document row.
			res := tx.Model(&models.DocumentModel{}).Where("id = ?", docID).Updates(map[string]any{
				"status":      models.DocumentPending,
				"title":       title,
				"grade":       scope.Grade,
				"subject":     scope.Subject,
				"blob_key":    key,
				"uploaded_by": up.ActorID,
			})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				return nil
			}
			doc := models.DocumentModel{
				Base:        models.Base{ID: docID},
				Fingerprint: fp,
				Title:       title,
				Filename:    req.Filename,
				ContentType: up.ContentType,
				SizeBytes:   int64(len(up.Data)),
				Grade:       scope.Grade,
				Subject:     scope.Subject,
				BlobKey:     key,
				Status:      models.DocumentPending,
				UploadedBy:  up.ActorID,
			}
			return tx.Create(&doc).Error
		},
	})
}

func (s *Service) handle(ctx context.Context, run *jobs.Run) (string, error) {
	var req Request
	if err := jobs.DecodePayload(run.Job, &req); err != nil {
		return "", err
	}
	log := s.logger.With(zap.String("job_id", run.Job.ID), zap.String("document_id", req.DocumentID))

	s.setDocumentStatus(ctx, req.DocumentID, map[string]any{"status": models.DocumentProcessing}, log)

	res, err := s.pipeline.Run(ctx, req, run)
	if err != nil {
		if !domain.IsRetryable(err) || run.Attempt() >= run.Job.MaxAttempts {
			s.setDocumentStatus(context.WithoutCancel(ctx), req.DocumentID, map[string]any{"status": models.DocumentFailed}, log)
		}
		return "", err
	}

	s.setDocumentStatus(ctx, req.DocumentID, map[string]any{
		"status": models.DocumentReady,
		"pages":  res.Pages,
		"chunks": res.Chunks,
	}, log)
	if err := s.fingerprints.SetDocument(ctx, req.Fingerprint, req.DocumentID); err != nil {
		log.Warn("link fingerprint to document failed", zap.Error(err))
	}
	if s.cache != nil {
		n, err := s.cache.InvalidateClass(ctx, cache.ClassResponse)
		if err != nil {
			log.Warn("response cache invalidation failed", zap.Error(err))
		} else {
			log.Info("response cache invalidated", zap.Int("entries", n))
		}
	}
	return req.DocumentID, nil
}

func (s *Service) setDocumentStatus(ctx context.Context, id string, values map[string]any, log *zap.Logger) {
	if err := s.db.WithContext(ctx).Model(&models.DocumentModel{}).Where("id = ?", id).Updates(values).Error; err != nil {
		log.Warn("document update failed", zap.Any("values", values), zap.Error(err))
	}
}
