package chat

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Iyabivuz-e/SomaAI/internal/domain"
	"github.com/Iyabivuz-e/SomaAI/internal/models"
)

type sessionKey struct{}

// WithSession tags ctx so SaveAnswer records the conversation the answer belongs to.
func WithSession(ctx context.Context, sessionID string) context.Context {
	if sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

func sessionFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// Store persists answers as messages with ordered citations.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// SaveAnswer writes the message and its citations in one transaction and
// returns the message id.
func (s *Store) SaveAnswer(ctx context.Context, actorID string, q domain.Query, a domain.Answer) (string, error) {
	msg := models.MessageModel{
		ActorID:          actorID,
		SessionID:        sessionFrom(ctx),
		Mode:             string(q.Mode),
		Question:         q.RawText,
		Answer:           a.Text,
		Sufficiency:      string(a.Sufficiency),
		Confidence:       a.Confidence,
		Grade:            q.Scope.Grade,
		Subject:          q.Scope.Subject,
		Analogy:          a.Analogy,
		RealWorldContext: a.RealWorldContext,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Citations").Create(&msg).Error; err != nil {
			return err
		}
		if len(a.Citations) == 0 {
			return nil
		}
		rows := make([]models.MessageCitationModel, len(a.Citations))
		for i, c := range a.Citations {
			rows[i] = models.MessageCitationModel{
				MessageID:      msg.ID,
				OrderIndex:     i,
				DocumentID:     c.DocumentID,
				Page:           c.Page,
				FragmentID:     c.FragmentID,
				Title:          c.Title,
				Snippet:        c.Snippet,
				StableLink:     c.StableLink,
				RelevanceScore: c.RelevanceScore,
			}
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

// Message loads one message with its citations in answer order.
func (s *Store) Message(ctx context.Context, id string) (*models.MessageModel, error) {
	var msg models.MessageModel
	err := s.db.WithContext(ctx).
		Preload("Citations", func(db *gorm.DB) *gorm.DB { return db.Order("order_index ASC") }).
		Where("id = ?", id).
		Take(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

