package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Iyabivuz-e/SomaAI/internal/config"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/jobs"
	pkgcron "github.com/Iyabivuz-e/SomaAI/internal/pkg/cron"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/taskqueue"
)

const promoteInterval = time.Second

// registerCronJobs registers the periodic maintenance loops.
func registerCronJobs(sched *pkgcron.Scheduler, js *jobs.Service, queue *taskqueue.Queue, cfg *config.AppConfig, logger *zap.Logger) {
	cronLogger := logger.Named("cron")

	sched.Register(pkgcron.Job{
		Name:        "reclaim_jobs",
		Description: "requeue jobs whose worker stopped heartbeating",
		Interval:    cfg.Jobs.ReclaimInterval,
		RunOnStart:  true,
		Timeout:     cfg.Jobs.ReclaimInterval,
		Fn: func(ctx context.Context) error {
			res, err := js.Reclaim(ctx)
			if err != nil {
				return err
			}
			if res.Requeued+res.Failed+res.Orphans > 0 {
				cronLogger.Info("reclaimed jobs",
					zap.Int("requeued", res.Requeued),
					zap.Int("failed", res.Failed),
					zap.Int("orphans", res.Orphans))
			}
			return nil
		},
	})

	sched.Register(pkgcron.Job{
		Name:        "promote_delayed_jobs",
		Description: "move retries whose backoff elapsed onto the ready queue",
		Interval:    promoteInterval,
		Timeout:     5 * time.Second,
		Fn: func(ctx context.Context) error {
			n, err := queue.PromoteDue(ctx, time.Now())
			if err != nil {
				return err
			}
			if n > 0 {
				cronLogger.Debug("promoted delayed jobs", zap.Int("count", n))
			}
			return nil
		},
	})
}
