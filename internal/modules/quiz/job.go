package quiz

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Iyabivuz-e/SomaAI/internal/domain"
	"github.com/Iyabivuz-e/SomaAI/internal/models"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/jobs"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/llm"
)

var errNoQuestions = errors.New("model returned no usable questions")

type modelQuestion struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
	Source      any      `json:"source"`
}

type modelOutput struct {
	Questions []modelQuestion `json:"questions"`
}

func (s *Service) handle(ctx context.Context, run *jobs.Run) (string, error) {
	var p payload
	if err := jobs.DecodePayload(run.Job, &p); err != nil {
		return "", err
	}
	log := s.logger.With(zap.String("job_id", run.Job.ID), zap.String("quiz_id", p.QuizID))

	err := s.generate(ctx, run, p.QuizID, log)
	if err != nil {
		if !domain.IsRetryable(err) || run.Attempt() >= run.Job.MaxAttempts {
			s.markFailed(context.WithoutCancel(ctx), p.QuizID, err, log)
		}
		return "", err
	}
	return p.QuizID, nil
}

func (s *Service) generate(ctx context.Context, run *jobs.Run, quizID string, log *zap.Logger) error {
	db := run.DB(ctx)
	var q models.QuizModel
	if err := db.Where("id = ?", quizID).Take(&q).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Permanent(fmt.Errorf("quiz %s: %w", quizID, domain.ErrNotFound))
		}
		return err
	}

	chunks, err := s.sourceChunks(db, q.TopicIDs)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return domain.Permanent(errors.New("selected documents have no content"))
	}
	_ = run.Progress(ctx, 20)

	raw, err := s.model.Generate(ctx, systemPrompt, userPrompt(&q, chunks))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGenerationUnavailable, err)
	}
	_ = run.Progress(ctx, 80)

	var out modelOutput
	if err := llm.UnmarshalJSON(raw, &out); err != nil {
		log.Warn("unparseable quiz output", zap.Error(err))
		return errNoQuestions
	}
	items := buildItems(q.ID, out.Questions, chunks, q.NumQuestions)
	if len(items) == 0 {
		return errNoQuestions
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("quiz_id = ?", q.ID).Delete(&models.QuizItemModel{}).Error; err != nil {
			return err
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		return tx.Model(&models.QuizModel{}).Where("id = ?", q.ID).
			Updates(map[string]any{"status": StatusReady, "error": ""}).Error
	})
	if err != nil {
		return err
	}
	log.Info("quiz generated", zap.Int("items", len(items)), zap.Int("sources", len(chunks)))
	return nil
}

// sourceChunks picks up to maxSourceChunks passages spread evenly over the
// selected documents, in document then reading order.
func (s *Service) sourceChunks(db *gorm.DB, topics []string) ([]models.ChunkModel, error) {
	var all []models.ChunkModel
	err := db.Where("document_id IN ?", topics).
		Order("document_id ASC, chunk_index ASC").
		Find(&all).Error
	if err != nil {
		return nil, err
	}
	if len(all) <= maxSourceChunks {
		return all, nil
	}
	picked := make([]models.ChunkModel, 0, maxSourceChunks)
	step := float64(len(all)) / float64(maxSourceChunks)
	for i := 0; i < maxSourceChunks; i++ {
		picked = append(picked, all[int(float64(i)*step)])
	}
	return picked, nil
}

func buildItems(quizID string, questions []modelQuestion, chunks []models.ChunkModel, limit int) []models.QuizItemModel {
	items := make([]models.QuizItemModel, 0, len(questions))
	for _, mq := range questions {
		if len(items) == limit {
			break
		}
		text := strings.TrimSpace(mq.Question)
		if text == "" {
			continue
		}
		var options models.StringArray
		for _, o := range mq.Options {
			if o = strings.TrimSpace(o); o != "" {
				options = append(options, o)
			}
		}
		item := models.QuizItemModel{
			QuizID:      quizID,
			OrderIndex:  len(items),
			Question:    text,
			Options:     options,
			Answer:      strings.TrimSpace(mq.Answer),
			Explanation: strings.TrimSpace(mq.Explanation),
			Citations:   []models.QuizCitation{},
		}
		if n, ok := sourceNumber(mq.Source); ok && n >= 1 && n <= len(chunks) {
			c := chunks[n-1]
			item.Citations = append(item.Citations, models.QuizCitation{
				DocumentID: c.DocumentID,
				Page:       c.Page,
				StableLink: domain.StableLink(c.DocumentID, c.Page),
			})
		}
		items = append(items, item)
	}
	return items
}

func sourceNumber(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), t == float64(int(t))
	case string:
		s := strings.TrimSpace(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(t)), "source"))
		s = strings.Trim(s, "[] ")
		n, err := strconv.Atoi(s)
		return n, err == nil
	default:
		return 0, false
	}
}

func (s *Service) markFailed(ctx context.Context, quizID string, cause error, log *zap.Logger) {
	err := s.db.WithContext(ctx).Model(&models.QuizModel{}).Where("id = ?", quizID).
		Updates(map[string]any{"status": StatusFailed, "error": cause.Error()}).Error
	if err != nil {
		log.Warn("mark quiz failed", zap.Error(err))
	}
}
