package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Iyabivuz-e/SomaAI/internal/config"
	"github.com/Iyabivuz-e/SomaAI/internal/domain"
	"github.com/Iyabivuz-e/SomaAI/internal/models"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/fingerprint"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/pagination"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/response"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/retry"
)

// Queue carries job ids to workers. The job table stays authoritative.
type Queue interface {
	Push(ctx context.Context, id string) error
	PushAt(ctx context.Context, id string, runAt time.Time) error
	Pop(ctx context.Context, workerID string, timeout time.Duration) (string, error)
	Ack(ctx context.Context, workerID, id string) error
	Recover(ctx context.Context, workerID string) (int, error)
}

// Handler executes one attempt of a job. A non-empty result is stored as
// the job's result_ref.
type Handler func(ctx context.Context, run *Run) (result string, err error)

// SubmitRequest describes a new job.
type SubmitRequest struct {
	Kind    string
	Payload any
	// Fingerprint enables dedup: at most one live job per fingerprint.
	Fingerprint string
	ActorID     string
	// OnCreate runs in the submit transaction only when a new job is created.
	OnCreate func(tx *gorm.DB, job *models.JobModel) error
}

// Filter narrows List.
type Filter struct {
	Kind    string
	State   string
	ActorID string
}

type Service struct {
	db           *gorm.DB
	queue        Queue
	fingerprints *fingerprint.Store
	cfg          config.JobsConfig
	logger       *zap.Logger
	now          func() time.Time

	mu       sync.RWMutex
	handlers map[string]Handler
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l.Named("jobs") }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(db *gorm.DB, queue Queue, fingerprints *fingerprint.Store, cfg config.JobsConfig, opts ...Option) *Service {
	s := &Service{
		db:           db,
		queue:        queue,
		fingerprints: fingerprints,
		cfg:          cfg,
		logger:       zap.NewNop(),
		now:          func() time.Time { return time.Now().UTC() },
		handlers:     make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.MaxAttempts < 1 {
		s.cfg.MaxAttempts = retry.Default.Attempts
	}
	if s.cfg.BackoffBase <= 0 {
		s.cfg.BackoffBase = retry.Default.Base
	}
	if s.cfg.BackoffMax <= 0 {
		s.cfg.BackoffMax = retry.Default.Max
	}
	return s
}

// RegisterHandler binds the handler for a job kind.
func (s *Service) RegisterHandler(kind string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = h
}

func (s *Service) handler(kind string) (Handler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handlers[kind]
	return h, ok
}

func (s *Service) retryPolicy() retry.Policy {
	return retry.Policy{
		Attempts: s.cfg.MaxAttempts,
		Base:     s.cfg.BackoffBase,
		Max:      s.cfg.BackoffMax,
		Jitter:   0.2,
	}
}

// Submit creates a job, or returns the live job already bound to the same
// fingerprint with created=false. Duplicates are not errors.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.JobModel, bool, error) {
	if req.Kind == "" {
		return nil, false, domain.Invalid("kind", "is required")
	}
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, false, fmt.Errorf("encode payload: %w", err)
	}

	job := &models.JobModel{
		Base:        models.Base{ID: uuid.NewString()},
		Kind:        req.Kind,
		Fingerprint: req.Fingerprint,
		State:       models.JobPending,
		NextRunAt:   s.now(),
		MaxAttempts: s.cfg.MaxAttempts,
		Payload:     string(payload),
		ActorID:     req.ActorID,
	}

	var existingID string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.Fingerprint != "" {
			owner, claimed, err := s.fingerprints.Claim(tx, req.Fingerprint, job.ID)
			if err != nil {
				return err
			}
			if !claimed {
				existingID = owner
				return nil
			}
		}
		if err := tx.Create(job).Error; err != nil {
			return fmt.Errorf("create job: %w", err)
		}
		if req.OnCreate != nil {
			return req.OnCreate(tx, job)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if existingID != "" {
		existing, err := s.Status(ctx, existingID)
		if err != nil {
			return nil, false, err
		}
		s.logger.Info("duplicate submission",
			zap.String("kind", req.Kind),
			zap.String("fingerprint", req.Fingerprint),
			zap.String("job_id", existingID))
		return existing, false, nil
	}

	if err := s.queue.Push(ctx, job.ID); err != nil {
		// The reclaim loop re-enqueues pending jobs, so the job is not lost.
		s.logger.Warn("enqueue failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	s.logger.Info("job submitted", zap.String("kind", job.Kind), zap.String("job_id", job.ID))
	return job, true, nil
}

func (s *Service) Status(ctx context.Context, id string) (*models.JobModel, error) {
	var job models.JobModel
	if err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (s *Service) List(ctx context.Context, f Filter, q pagination.Query) ([]models.JobModel, response.Pagination, error) {
	tx := s.db.WithContext(ctx).Model(&models.JobModel{}).Order("created_at DESC")
	if f.Kind != "" {
		tx = tx.Where("kind = ?", f.Kind)
	}
	if f.State != "" {
		tx = tx.Where("state = ?", f.State)
	}
	if f.ActorID != "" {
		tx = tx.Where("actor_id = ?", f.ActorID)
	}
	var jobs []models.JobModel
	pag, err := pagination.Paginate(tx, q, &jobs)
	return jobs, pag, err
}

// DecodePayload unmarshals the job payload into out.
func DecodePayload(job *models.JobModel, out any) error {
	if err := json.Unmarshal([]byte(job.Payload), out); err != nil {
		return domain.Permanent(fmt.Errorf("decode %s payload: %w", job.Kind, err))
	}
	return nil
}
