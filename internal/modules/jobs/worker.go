package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Iyabivuz-e/SomaAI/internal/domain"
	"github.com/Iyabivuz-e/SomaAI/internal/models"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/retry"
)

var errLostOwnership = errors.New("job no longer owned by this worker")

const popTimeout = 2 * time.Second

// RunWorkers starts n workers and blocks until ctx is canceled and every
// worker has finished its current job.
func (s *Service) RunWorkers(ctx context.Context, prefix string, n int) {
	if n < 1 {
		n = 1
	}
	host, _ := os.Hostname()
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-%s-%d", prefix, host, i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.workerLoop(ctx, id)
		}()
	}
	s.logger.Info("workers started", zap.Int("count", n), zap.String("prefix", prefix))
	wg.Wait()
	s.logger.Info("workers stopped")
}

func (s *Service) workerLoop(ctx context.Context, workerID string) {
	log := s.logger.With(zap.String("worker", workerID))
	if n, err := s.queue.Recover(ctx, workerID); err != nil {
		log.Warn("recover processing list failed", zap.Error(err))
	} else if n > 0 {
		log.Info("recovered queued ids", zap.Int("count", n))
	}

	for ctx.Err() == nil {
		id, err := s.queue.Pop(ctx, workerID, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("queue pop failed", zap.Error(err))
			sleep(ctx, time.Second)
			continue
		}
		if id == "" {
			continue
		}
		s.Process(ctx, workerID, id)
		if err := s.queue.Ack(context.WithoutCancel(ctx), workerID, id); err != nil {
			log.Warn("queue ack failed", zap.String("job_id", id), zap.Error(err))
		}
	}
}

// Process claims job id for workerID and runs one attempt. Losing the claim
// race (or the job not being due) is not an error. Canceling ctx interrupts
// the handler; the attempt is then recorded as a retryable failure.
func (s *Service) Process(ctx context.Context, workerID, id string) {
	log := s.logger.With(zap.String("worker", workerID), zap.String("job_id", id))

	job, ok, err := s.claim(ctx, workerID, id)
	if err != nil {
		log.Error("claim failed", zap.Error(err))
		return
	}
	if !ok {
		return
	}
	log = log.With(zap.String("kind", job.Kind), zap.Int("attempt", job.Attempts))

	bookkeeping := context.WithoutCancel(ctx)
	h, found := s.handler(job.Kind)
	if !found {
		s.finish(bookkeeping, job, workerID, "", domain.Permanent(fmt.Errorf("no handler for kind %q", job.Kind)), log)
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	hbDone := make(chan struct{})
	go func() {
		defer close(hbDone)
		s.heartbeat(runCtx, job.ID, workerID, cancel, log)
	}()

	started := s.now()
	result, runErr := s.invoke(runCtx, h, &Run{Job: job, workerID: workerID, svc: s})
	cancel()
	<-hbDone

	log.Info("attempt finished", zap.Duration("took", s.now().Sub(started)), zap.Error(runErr))
	s.finish(bookkeeping, job, workerID, result, runErr, log)
}

func (s *Service) invoke(ctx context.Context, h Handler, run *Run) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job handler panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, run)
}

func (s *Service) claim(ctx context.Context, workerID, id string) (*models.JobModel, bool, error) {
	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.JobModel{}).
		Where("id = ? AND state = ? AND next_run_at <= ?", id, models.JobPending, now).
		Updates(map[string]any{
			"state":        models.JobRunning,
			"worker_id":    workerID,
			"heartbeat_at": now,
			"started_at":   now,
			"attempts":     gorm.Expr("attempts + 1"),
		})
	if res.Error != nil {
		return nil, false, res.Error
	}

	job, err := s.Status(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if res.RowsAffected == 0 {
		// Pending but not yet due: park it until then.
		if job.State == models.JobPending && job.NextRunAt.After(now) {
			if err := s.queue.PushAt(ctx, job.ID, job.NextRunAt); err != nil {
				s.logger.Warn("reschedule failed", zap.String("job_id", id), zap.Error(err))
			}
		}
		return nil, false, nil
	}
	s.markFingerprint(ctx, job, models.JobRunning)
	return job, true, nil
}

func (s *Service) heartbeat(ctx context.Context, id, workerID string, cancel context.CancelFunc, log *zap.Logger) {
	interval := s.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			res := s.db.WithContext(ctx).Model(&models.JobModel{}).
				Where("id = ? AND state = ? AND worker_id = ?", id, models.JobRunning, workerID).
				Update("heartbeat_at", s.now())
			if res.Error != nil {
				if ctx.Err() == nil {
					log.Warn("heartbeat failed", zap.Error(res.Error))
				}
				continue
			}
			if res.RowsAffected == 0 {
				log.Warn("job reclaimed by another worker, stopping")
				cancel()
				return
			}
		}
	}
}

// finish records the outcome of an attempt with a conditional update on the
// running state, so a reclaimed job is never overwritten.
func (s *Service) finish(ctx context.Context, job *models.JobModel, workerID, result string, runErr error, log *zap.Logger) {
	now := s.now()
	owned := s.db.WithContext(ctx).Model(&models.JobModel{}).
		Where("id = ? AND state = ? AND worker_id = ?", job.ID, models.JobRunning, workerID)

	if runErr == nil {
		res := owned.Updates(map[string]any{
			"state":        models.JobCompleted,
			"progress_pct": 100,
			"result_ref":   result,
			"error":        "",
			"completed_at": now,
		})
		s.settled(ctx, job, res.Error, res.RowsAffected, models.JobCompleted, log)
		return
	}

	if domain.IsRetryable(runErr) && !errors.Is(runErr, errLostOwnership) && job.Attempts < job.MaxAttempts {
		next := now.Add(retry.Delay(s.retryPolicy(), job.Attempts))
		res := owned.Updates(map[string]any{
			"state":       models.JobPending,
			"next_run_at": next,
			"worker_id":   "",
			"error":       runErr.Error(),
		})
		if res.Error != nil || res.RowsAffected == 0 {
			s.settled(ctx, job, res.Error, res.RowsAffected, models.JobPending, log)
			return
		}
		log.Warn("attempt failed, retry scheduled", zap.Time("next_run_at", next), zap.Error(runErr))
		if err := s.queue.PushAt(ctx, job.ID, next); err != nil {
			log.Warn("reschedule failed", zap.Error(err))
		}
		s.markFingerprint(ctx, job, models.JobPending)
		return
	}

	if errors.Is(runErr, errLostOwnership) {
		log.Warn("attempt abandoned, job owned elsewhere")
		return
	}
	res := owned.Updates(map[string]any{
		"state":        models.JobFailed,
		"error":        fmt.Sprintf("%s: %s", domain.ErrJobFailed, runErr),
		"completed_at": now,
	})
	log.Error("job failed", zap.Error(runErr))
	s.settled(ctx, job, res.Error, res.RowsAffected, models.JobFailed, log)
}

func (s *Service) settled(ctx context.Context, job *models.JobModel, err error, rows int64, state string, log *zap.Logger) {
	if err != nil {
		log.Error("record job outcome failed", zap.String("state", state), zap.Error(err))
		return
	}
	if rows == 0 {
		log.Warn("job outcome dropped, no longer owned", zap.String("state", state))
		return
	}
	s.markFingerprint(ctx, job, state)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
