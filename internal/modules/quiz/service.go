// Package quiz generates quizzes from ingested documents as background jobs.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Iyabivuz-e/SomaAI/internal/domain"
	"github.com/Iyabivuz-e/SomaAI/internal/models"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/jobs"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/llm"
)

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"

	DefaultQuestions = 5
	MaxQuestions     = 20
	MaxTopics        = 10

	// maxSourceChunks caps the passages sent to the model per quiz.
	maxSourceChunks = 24
)

// Quiz lifecycle states.
const (
	StatusPending = "pending"
	StatusReady   = "ready"
	StatusFailed  = "failed"
)

// GenerateInput is a quiz request. TopicIDs are document ids.
type GenerateInput struct {
	TopicIDs         []string `json:"topic_ids"`
	Difficulty       string   `json:"difficulty"`
	NumQuestions     int      `json:"num_questions"`
	IncludeAnswerKey *bool    `json:"include_answer_key"`
}

type payload struct {
	QuizID string `json:"quiz_id"`
}

type Service struct {
	db     *gorm.DB
	jobs   *jobs.Service
	model  llm.Model
	logger *zap.Logger
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l.Named("quiz") }
}

func NewService(db *gorm.DB, js *jobs.Service, model llm.Model, opts ...Option) *Service {
	s := &Service{db: db, jobs: js, model: model, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	js.RegisterHandler(models.JobKindQuizGenerate, s.handle)
	return s
}

// Generate validates the request, creates the quiz row and enqueues its
// generation. Quiz jobs are never deduplicated.
func (s *Service) Generate(ctx context.Context, actorID string, in GenerateInput) (*models.JobModel, string, error) {
	topics, err := s.validate(ctx, &in)
	if err != nil {
		return nil, "", err
	}
	includeKey := true
	if in.IncludeAnswerKey != nil {
		includeKey = *in.IncludeAnswerKey
	}

	quizID := uuid.NewString()
	job, _, err := s.jobs.Submit(ctx, jobs.SubmitRequest{
		Kind:    models.JobKindQuizGenerate,
		Payload: payload{QuizID: quizID},
		ActorID: actorID,
		OnCreate: func(tx *gorm.DB, job *models.JobModel) error {
			return tx.Create(&models.QuizModel{
				Base:             models.Base{ID: quizID},
				JobID:            job.ID,
				ActorID:          actorID,
				TopicIDs:         topics,
				Difficulty:       in.Difficulty,
				NumQuestions:     in.NumQuestions,
				IncludeAnswerKey: includeKey,
				Status:           StatusPending,
			}).Error
		},
	})
	if err != nil {
		return nil, "", err
	}
	return job, quizID, nil
}

func (s *Service) validate(ctx context.Context, in *GenerateInput) (models.StringArray, error) {
	seen := make(map[string]struct{}, len(in.TopicIDs))
	var topics models.StringArray
	for _, id := range in.TopicIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		topics = append(topics, id)
	}
	if len(topics) == 0 {
		return nil, domain.Invalid("topic_ids", "at least one document is required")
	}
	if len(topics) > MaxTopics {
		return nil, domain.Invalid("topic_ids", fmt.Sprintf("at most %d documents", MaxTopics))
	}

	in.Difficulty = strings.ToLower(strings.TrimSpace(in.Difficulty))
	switch in.Difficulty {
	case "":
		in.Difficulty = DifficultyMedium
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return nil, domain.Invalid("difficulty", "must be easy, medium or hard")
	}

	switch {
	case in.NumQuestions == 0:
		in.NumQuestions = DefaultQuestions
	case in.NumQuestions < 0 || in.NumQuestions > MaxQuestions:
		return nil, domain.Invalid("num_questions", fmt.Sprintf("must be between 1 and %d", MaxQuestions))
	}

	var ready int64
	err := s.db.WithContext(ctx).Model(&models.DocumentModel{}).
		Where("id IN ? AND status = ?", []string(topics), models.DocumentReady).
		Count(&ready).Error
	if err != nil {
		return nil, err
	}
	if int(ready) != len(topics) {
		return nil, domain.Invalid("topic_ids", "every document must exist and be fully ingested")
	}
	return topics, nil
}

// Get returns a quiz with its items in order. The answer key is stripped
// when the quiz was requested without one.
func (s *Service) Get(ctx context.Context, id string) (*models.QuizModel, error) {
	var q models.QuizModel
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("order_index ASC") }).
		Where("id = ?", id).
		Take(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !q.IncludeAnswerKey {
		for i := range q.Items {
			q.Items[i].Answer = ""
			q.Items[i].Explanation = ""
			q.Items[i].Citations = nil
		}
	}
	if q.Items == nil {
		q.Items = []models.QuizItemModel{}
	}
	return &q, nil
}
