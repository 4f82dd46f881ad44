// Package docs exposes the ingested document catalog and the page viewer
// that citation links point at.
package docs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Iyabivuz-e/SomaAI/internal/domain"
	"github.com/Iyabivuz-e/SomaAI/internal/models"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/rag/cache"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/blobstore"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/pagination"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/response"
)

// VectorIndex is the slice of the index the catalog needs.
type VectorIndex interface {
	CountDocument(ctx context.Context, documentID string) (int, error)
	DeleteDocument(ctx context.Context, documentID string) error
}

// CacheInvalidator drops a whole cache class.
type CacheInvalidator interface {
	InvalidateClass(ctx context.Context, class cache.Class) (int, error)
}

type Filter struct {
	Grade   string
	Subject string
	Status  string
}

type Service struct {
	db     *gorm.DB
	index  VectorIndex
	blobs  blobstore.Store
	cache  CacheInvalidator
	logger *zap.Logger
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l.Named("docs") }
}

func WithCacheInvalidator(c CacheInvalidator) Option {
	return func(s *Service) { s.cache = c }
}

func NewService(db *gorm.DB, index VectorIndex, blobs blobstore.Store, opts ...Option) *Service {
	s := &Service{db: db, index: index, blobs: blobs, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) List(ctx context.Context, f Filter, q pagination.Query) ([]models.DocumentModel, response.Pagination, error) {
	scope := domain.NormalizeScope(domain.Scope{Grade: f.Grade, Subject: f.Subject})
	tx := s.db.WithContext(ctx).Model(&models.DocumentModel{}).Order("created_at DESC")
	if scope.Grade != "" {
		tx = tx.Where("grade = ?", scope.Grade)
	}
	if scope.Subject != "" {
		tx = tx.Where("subject = ?", scope.Subject)
	}
	if f.Status != "" {
		tx = tx.Where("status = ?", strings.ToLower(f.Status))
	}
	var docs []models.DocumentModel
	pag, err := pagination.Paginate(tx, q, &docs)
	if docs == nil {
		docs = []models.DocumentModel{}
	}
	return docs, pag, err
}

func (s *Service) Get(ctx context.Context, id string) (*models.DocumentModel, error) {
	var doc models.DocumentModel
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// IndexedChunks asks the vector index how many points the document has.
func (s *Service) IndexedChunks(ctx context.Context, id string) (int, error) {
	if s.index == nil {
		return 0, errors.New("vector index not configured")
	}
	return s.index.CountDocument(ctx, id)
}

// PageView is the stored text of one page of a document.
type PageView struct {
	DocumentID string         `json:"document_id"`
	Title      string         `json:"title"`
	Page       int            `json:"page"`
	Pages      int            `json:"pages"`
	Text       string         `json:"text"`
	Chunks     []PageFragment `json:"chunks"`
}

type PageFragment struct {
	ID         string `json:"id"`
	ChunkIndex int    `json:"chunk_index"`
	Content    string `json:"content"`
}

// View returns the chunks of a page in reading order. Pages are 1-indexed.
func (s *Service) View(ctx context.Context, id string, page int) (*PageView, error) {
	if page < 1 {
		return nil, domain.Invalid("page", "must be 1 or greater")
	}
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Pages > 0 && page > doc.Pages {
		return nil, fmt.Errorf("page %d of %d: %w", page, doc.Pages, domain.ErrNotFound)
	}

	var chunks []models.ChunkModel
	err = s.db.WithContext(ctx).
		Where("document_id = ? AND page = ?", id, page).
		Order("chunk_index ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 && doc.Pages == 0 {
		return nil, fmt.Errorf("page %d: %w", page, domain.ErrNotFound)
	}

	view := &PageView{
		DocumentID: doc.ID,
		Title:      doc.Title,
		Page:       page,
		Pages:      doc.Pages,
		Chunks:     make([]PageFragment, len(chunks)),
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		view.Chunks[i] = PageFragment{ID: c.ID, ChunkIndex: c.ChunkIndex, Content: c.Content}
		texts[i] = c.Content
	}
	view.Text = strings.Join(texts, "\n\n")
	return view, nil
}

// Delete removes a document everywhere it lives: vector points, chunk rows,
// the fingerprint claim, the stored upload and the document row. Documents
// still being ingested cannot be deleted.
func (s *Service) Delete(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if doc.Status == models.DocumentPending || doc.Status == models.DocumentProcessing {
		return fmt.Errorf("document is %s: %w", doc.Status, domain.ErrConflict)
	}
	log := s.logger.With(zap.String("document_id", id))

	if s.index != nil {
		if err := s.index.DeleteDocument(ctx, id); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrRetrievalUnavailable, err)
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&models.ChunkModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("fingerprint = ?", doc.Fingerprint).Delete(&models.FingerprintModel{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.DocumentModel{}, "id = ?", id).Error
	})
	if err != nil {
		return err
	}

	if s.blobs != nil && doc.BlobKey != "" {
		if err := s.blobs.Delete(ctx, doc.BlobKey); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			log.Warn("delete upload failed", zap.String("key", doc.BlobKey), zap.Error(err))
		}
	}
	if s.cache != nil {
		if _, err := s.cache.InvalidateClass(ctx, cache.ClassResponse); err != nil {
			log.Warn("response cache invalidation failed", zap.Error(err))
		}
	}
	log.Info("document deleted", zap.String("title", doc.Title))
	return nil
}
