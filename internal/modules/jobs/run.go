package jobs

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/Iyabivuz-e/SomaAI/internal/models"
)

// Run is a handler's view of the job attempt it is executing.
// Writes are conditional on the job still being owned by this worker.
type Run struct {
	Job      *models.JobModel
	workerID string
	svc      *Service
}

// Attempt is the 1-based attempt number.
func (r *Run) Attempt() int { return r.Job.Attempts }

// Checkpoint is the progress marker saved by an earlier attempt.
func (r *Run) Checkpoint() int { return r.Job.Checkpoint }

// SaveCheckpoint persists the marker a retry resumes from.
func (r *Run) SaveCheckpoint(ctx context.Context, n int) error {
	if err := r.update(ctx, map[string]any{"checkpoint": n}); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	r.Job.Checkpoint = n
	return nil
}

// Progress records a completion percentage in [0, 100].
func (r *Run) Progress(ctx context.Context, pct int) error {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	if err := r.update(ctx, map[string]any{"progress_pct": pct}); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	r.Job.ProgressPct = pct
	return nil
}

func (r *Run) update(ctx context.Context, values map[string]any) error {
	res := r.svc.db.WithContext(ctx).Model(&models.JobModel{}).
		Where("id = ? AND state = ? AND worker_id = ?", r.Job.ID, models.JobRunning, r.workerID).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errLostOwnership
	}
	return nil
}

// DB exposes the store for handlers that write their own rows.
func (r *Run) DB(ctx context.Context) *gorm.DB {
	return r.svc.db.WithContext(ctx)
}
