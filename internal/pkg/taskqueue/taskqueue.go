package taskqueue

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	redisc "github.com/Iyabivuz-e/SomaAI/internal/pkg/redis"
)

const (
	keyReady      = "soma:jobs:ready"       // list of job ids ready to run
	keyDelayed    = "soma:jobs:delayed"     // sorted set: score=run_at ms, member=job id
	keyProcessing = "soma:jobs:processing:" // list per worker of ids being handled
)

// Queue is a Redis list of job ids. It only carries wake-ups:
// the job rows in the database stay the source of truth.
type Queue struct {
	rc *redisc.Client
}

func New(rc *redisc.Client) *Queue {
	return &Queue{rc: rc}
}

// Push makes a job id available to workers immediately.
func (q *Queue) Push(ctx context.Context, id string) error {
	return q.rc.Raw().LPush(ctx, keyReady, id).Err()
}

// PushAt schedules a job id to become available at runAt.
func (q *Queue) PushAt(ctx context.Context, id string, runAt time.Time) error {
	if !runAt.After(time.Now()) {
		return q.Push(ctx, id)
	}
	return q.rc.Raw().ZAdd(ctx, keyDelayed, redis.Z{
		Score:  float64(runAt.UnixMilli()),
		Member: id,
	}).Err()
}

// Pop blocks up to timeout for the next job id and parks it on the worker's
// processing list. It returns "" when nothing arrived in time.
func (q *Queue) Pop(ctx context.Context, workerID string, timeout time.Duration) (string, error) {
	if _, err := q.PromoteDue(ctx, time.Now()); err != nil {
		return "", err
	}
	id, err := q.rc.Raw().BLMove(ctx, keyReady, keyProcessing+workerID, "RIGHT", "LEFT", timeout).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// Ack removes a handled id from the worker's processing list.
func (q *Queue) Ack(ctx context.Context, workerID, id string) error {
	return q.rc.Raw().LRem(ctx, keyProcessing+workerID, 1, id).Err()
}

// PromoteDue moves delayed ids whose time has come onto the ready list.
func (q *Queue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	ids, err := q.rc.Raw().ZRangeByScore(ctx, keyDelayed, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, id := range ids {
		removed, err := q.rc.Raw().ZRem(ctx, keyDelayed, id).Result()
		if err != nil {
			return moved, err
		}
		// Another worker promoted it first.
		if removed == 0 {
			continue
		}
		if err := q.Push(ctx, id); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// Recover returns ids left on a worker's processing list (after a crash) to the ready list.
func (q *Queue) Recover(ctx context.Context, workerID string) (int, error) {
	n := 0
	for {
		_, err := q.rc.Raw().LMove(ctx, keyProcessing+workerID, keyReady, "RIGHT", "LEFT").Result()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

// Len reports the number of ready and delayed ids.
func (q *Queue) Len(ctx context.Context) (ready, delayed int64, err error) {
	pipe := q.rc.Raw().Pipeline()
	readyCmd := pipe.LLen(ctx, keyReady)
	delayedCmd := pipe.ZCard(ctx, keyDelayed)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}
	return readyCmd.Val(), delayedCmd.Val(), nil
}
