package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Iyabivuz-e/SomaAI/internal/domain"
	"github.com/Iyabivuz-e/SomaAI/internal/models"
)

// ReclaimResult counts what one reclaim pass changed.
type ReclaimResult struct {
	Requeued int
	Failed   int
	Orphans  int
}

// Reclaim returns running jobs whose heartbeat went stale to pending (or
// fails them when attempts are exhausted) and re-enqueues pending jobs that
// are overdue, which covers ids lost between commit and enqueue.
func (s *Service) Reclaim(ctx context.Context) (ReclaimResult, error) {
	var out ReclaimResult
	staleAfter := s.cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = time.Minute
	}
	now := s.now()
	cutoff := now.Add(-staleAfter)

	var stale []models.JobModel
	if err := s.db.WithContext(ctx).
		Where("state = ? AND heartbeat_at < ?", models.JobRunning, cutoff).
		Find(&stale).Error; err != nil {
		return out, fmt.Errorf("find stale jobs: %w", err)
	}
	for i := range stale {
		job := &stale[i]
		cas := s.db.WithContext(ctx).Model(&models.JobModel{}).
			Where("id = ? AND state = ? AND worker_id = ? AND heartbeat_at < ?", job.ID, models.JobRunning, job.WorkerID, cutoff)

		if job.Attempts >= job.MaxAttempts {
			res := cas.Updates(map[string]any{
				"state":        models.JobFailed,
				"error":        fmt.Sprintf("%s: worker %s stopped responding", domain.ErrJobFailed, job.WorkerID),
				"completed_at": now,
			})
			if res.Error != nil {
				return out, res.Error
			}
			if res.RowsAffected == 1 {
				out.Failed++
				s.markFingerprint(ctx, job, models.JobFailed)
			}
			continue
		}

		res := cas.Updates(map[string]any{
			"state":       models.JobPending,
			"worker_id":   "",
			"next_run_at": now,
		})
		if res.Error != nil {
			return out, res.Error
		}
		if res.RowsAffected == 1 {
			out.Requeued++
			s.markFingerprint(ctx, job, models.JobPending)
			if err := s.queue.Push(ctx, job.ID); err != nil {
				s.logger.Warn("requeue failed", zap.String("job_id", job.ID), zap.Error(err))
			}
		}
	}

	var orphans []string
	if err := s.db.WithContext(ctx).Model(&models.JobModel{}).
		Where("state = ? AND next_run_at < ?", models.JobPending, cutoff).
		Pluck("id", &orphans).Error; err != nil {
		return out, fmt.Errorf("find overdue jobs: %w", err)
	}
	for _, id := range orphans {
		if err := s.queue.Push(ctx, id); err != nil {
			return out, fmt.Errorf("requeue overdue job: %w", err)
		}
		out.Orphans++
	}

	if out.Requeued+out.Failed+out.Orphans > 0 {
		s.logger.Info("reclaim pass",
			zap.Int("requeued", out.Requeued),
			zap.Int("failed", out.Failed),
			zap.Int("overdue", out.Orphans))
	}
	return out, nil
}

func (s *Service) markFingerprint(ctx context.Context, job *models.JobModel, state string) {
	if job.Fingerprint == "" || s.fingerprints == nil {
		return
	}
	if err := s.fingerprints.MarkStatus(ctx, job.Fingerprint, state); err != nil {
		s.logger.Warn("fingerprint status update failed", zap.Error(err))
	}
}
