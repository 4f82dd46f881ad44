package teacher

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Iyabivuz-e/SomaAI/internal/database"
	"github.com/Iyabivuz-e/SomaAI/internal/domain"
	"github.com/Iyabivuz-e/SomaAI/internal/models"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Defaults apply to teachers who have not saved a profile.
func Defaults(actorID string) models.TeacherProfileModel {
	return models.TeacherProfileModel{
		ActorID:          actorID,
		AnalogyEnabled:   true,
		RealWorldEnabled: true,
	}
}

// Get returns the saved profile, or the defaults when there is none.
func (s *Service) Get(ctx context.Context, actorID string) (models.TeacherProfileModel, error) {
	var p models.TeacherProfileModel
	err := s.db.WithContext(ctx).Where("actor_id = ?", actorID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Defaults(actorID), nil
	}
	return p, err
}

// UpdateInput holds the fields a teacher may change. Nil leaves a field as is.
type UpdateInput struct {
	AnalogyEnabled   *bool   `json:"analogy_enabled"`
	RealWorldEnabled *bool   `json:"realworld_enabled"`
	DefaultGrade     *string `json:"default_grade"`
	DefaultSubject   *string `json:"default_subject"`
}

func (s *Service) Update(ctx context.Context, actorID string, in UpdateInput) (models.TeacherProfileModel, error) {
	p, err := s.Get(ctx, actorID)
	if err != nil {
		return p, err
	}
	if in.AnalogyEnabled != nil {
		p.AnalogyEnabled = *in.AnalogyEnabled
	}
	if in.RealWorldEnabled != nil {
		p.RealWorldEnabled = *in.RealWorldEnabled
	}
	if in.DefaultGrade != nil || in.DefaultSubject != nil {
		scope := domain.Scope{Grade: p.DefaultGrade, Subject: p.DefaultSubject}
		if in.DefaultGrade != nil {
			scope.Grade = *in.DefaultGrade
		}
		if in.DefaultSubject != nil {
			scope.Subject = *in.DefaultSubject
		}
		scope = domain.NormalizeScope(scope)
		if scope.Grade != "" && !domain.ValidGrade(scope.Grade) {
			return p, domain.Invalid("default_grade", "must be one of P1-P6 or S1-S6")
		}
		p.DefaultGrade = scope.Grade
		p.DefaultSubject = scope.Subject
	}

	db := s.db.WithContext(ctx)
	if p.ID == "" {
		err = db.Create(&p).Error
		if database.IsDuplicateKey(err) {
			// A concurrent first save won; apply ours on top of it.
			err = db.Model(&models.TeacherProfileModel{}).
				Where("actor_id = ?", actorID).
				Updates(map[string]any{
					"analogy_enabled":    p.AnalogyEnabled,
					"real_world_enabled": p.RealWorldEnabled,
					"default_grade":      p.DefaultGrade,
					"default_subject":    p.DefaultSubject,
				}).Error
		}
	} else {
		err = db.Model(&p).
			Select("analogy_enabled", "real_world_enabled", "default_grade", "default_subject").
			Updates(&p).Error
	}
	if err != nil {
		return p, err
	}
	return s.Get(ctx, actorID)
}
