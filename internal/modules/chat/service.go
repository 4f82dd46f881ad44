// Package chat answers curriculum questions and serves past answers.
package chat

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Iyabivuz-e/SomaAI/internal/domain"
	"github.com/Iyabivuz-e/SomaAI/internal/models"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/rag/pipeline"
)

// Asker runs one question through the query pipeline.
type Asker interface {
	Answer(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// Profiles resolves teacher preferences.
type Profiles interface {
	Get(ctx context.Context, actorID string) (models.TeacherProfileModel, error)
}

// AskInput is a question as posted by a client. Nil toggles fall back to
// the mode's defaults.
type AskInput struct {
	Question      string `json:"question"`
	Grade         string `json:"grade"`
	Subject       string `json:"subject"`
	Mode          string `json:"mode"`
	WantAnalogy   *bool  `json:"want_analogy"`
	WantRealWorld *bool  `json:"want_realworld"`
	SessionID     string `json:"session_id"`
}

type Service struct {
	asker    Asker
	store    *Store
	profiles Profiles
	logger   *zap.Logger
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l.Named("chat") }
}

// WithProfiles enables teacher preference defaults.
func WithProfiles(p Profiles) Option {
	return func(s *Service) { s.profiles = p }
}

func NewService(asker Asker, store *Store, opts ...Option) *Service {
	s := &Service{asker: asker, store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask resolves mode defaults for the actor and answers the question.
func (s *Service) Ask(ctx context.Context, actorID string, in AskInput) (pipeline.Result, error) {
	mode := domain.Mode(strings.ToLower(strings.TrimSpace(in.Mode)))
	if mode == "" {
		mode = domain.ModeStudent
	}
	scope := domain.Scope{Grade: in.Grade, Subject: in.Subject}
	var opts domain.Options

	if mode == domain.ModeTeacher {
		opts = domain.Options{WantAnalogy: true, WantRealWorld: true}
		if s.profiles != nil {
			p, err := s.profiles.Get(ctx, actorID)
			if err != nil {
				s.logger.Warn("teacher profile unavailable, using defaults", zap.String("actor", actorID), zap.Error(err))
			} else {
				opts = domain.Options{WantAnalogy: p.AnalogyEnabled, WantRealWorld: p.RealWorldEnabled}
				if strings.TrimSpace(scope.Grade) == "" {
					scope.Grade = p.DefaultGrade
				}
				if strings.TrimSpace(scope.Subject) == "" {
					scope.Subject = p.DefaultSubject
				}
			}
		}
	}
	if in.WantAnalogy != nil {
		opts.WantAnalogy = *in.WantAnalogy
	}
	if in.WantRealWorld != nil {
		opts.WantRealWorld = *in.WantRealWorld
	}

	return s.asker.Answer(WithSession(ctx, strings.TrimSpace(in.SessionID)), pipeline.Request{
		ActorID:  actorID,
		Question: in.Question,
		Scope:    scope,
		Mode:     mode,
		Options:  opts,
	})
}

// Message returns a stored answer. Messages of other actors are reported as missing.
func (s *Service) Message(ctx context.Context, actorID, id string) (*models.MessageModel, error) {
	msg, err := s.store.Message(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.ActorID != actorID {
		return nil, domain.ErrNotFound
	}
	return msg, nil
}
