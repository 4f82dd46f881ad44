// Package cron runs named maintenance loops at fixed intervals and keeps
// enough state about each run to report it over HTTP.
package cron

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrUnknownJob = errors.New("unknown cron job")
	// ErrBusy is returned by RunNow while the job is already running.
	ErrBusy = errors.New("cron job already running")
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
)

// Job is a periodic task.
type Job struct {
	Name        string
	Description string
	Interval    time.Duration
	// RunOnStart fires the first run immediately instead of after one interval.
	RunOnStart bool
	// Timeout bounds a single run. Zero means the run only stops with the scheduler.
	Timeout time.Duration
	Fn      func(ctx context.Context) error
}

type entry struct {
	Job

	mu        sync.Mutex
	status    Status
	lastErr   string
	lastRunAt *time.Time
	lastTook  time.Duration
	nextRunAt time.Time
	runs      int
	failures  int
}

// Snapshot is the reported state of one job.
type Snapshot struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Interval    string     `json:"interval"`
	Status      Status     `json:"status"`
	LastError   string     `json:"last_error,omitempty"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
	LastTookMs  int64      `json:"last_took_ms"`
	NextRunAt   time.Time  `json:"next_run_at"`
	Runs        int        `json:"runs"`
	Failures    int        `json:"failures"`
}

type Scheduler struct {
	mu     sync.RWMutex
	jobs   map[string]*entry
	wg     sync.WaitGroup
	logger *zap.Logger
	now    func() time.Time
}

func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		jobs:   make(map[string]*entry),
		logger: logger.Named("cron"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register adds a job. Jobs registered after Start never run on their own.
// A non-positive interval is replaced by one minute.
func (s *Scheduler) Register(job Job) {
	if job.Interval <= 0 {
		job.Interval = time.Minute
	}
	next := s.now()
	if !job.RunOnStart {
		next = next.Add(job.Interval)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.Name] = &entry{Job: job, status: StatusIdle, nextRunAt: next}
}

// Start launches one loop per job. Loops stop when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, e)
	}
}

// Wait blocks until every loop has exited.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	defer s.wg.Done()
	for {
		e.mu.Lock()
		wait := e.nextRunAt.Sub(s.now())
		e.mu.Unlock()

		timer := time.NewTimer(max(wait, 0))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		_ = s.run(ctx, e)
		e.mu.Lock()
		e.nextRunAt = s.now().Add(e.Interval)
		e.mu.Unlock()
	}
}

// run executes one attempt. Overlapping runs of the same job are refused.
func (s *Scheduler) run(ctx context.Context, e *entry) error {
	e.mu.Lock()
	if e.status == StatusRunning {
		e.mu.Unlock()
		return ErrBusy
	}
	e.status = StatusRunning
	e.mu.Unlock()

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	started := s.now()
	err := e.Fn(ctx)
	took := s.now().Sub(started)

	e.mu.Lock()
	e.lastRunAt = &started
	e.lastTook = took
	e.runs++
	if err != nil {
		e.status = StatusFailed
		e.lastErr = err.Error()
		e.failures++
	} else {
		e.status = StatusOK
		e.lastErr = ""
	}
	e.mu.Unlock()

	if err != nil {
		s.logger.Warn("cron job failed", zap.String("job", e.Name), zap.Duration("took", took), zap.Error(err))
	}
	return err
}

// RunNow executes a job synchronously and returns its error.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	e, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, e)
}

// List reports every job, sorted by name.
func (s *Scheduler) List() []Snapshot {
	s.mu.RLock()
	out := make([]Snapshot, 0, len(s.jobs))
	for _, e := range s.jobs {
		e.mu.Lock()
		out = append(out, Snapshot{
			Name:        e.Name,
			Description: e.Description,
			Interval:    e.Interval.String(),
			Status:      e.status,
			LastError:   e.lastErr,
			LastRunAt:   e.lastRunAt,
			LastTookMs:  e.lastTook.Milliseconds(),
			NextRunAt:   e.nextRunAt,
			Runs:        e.runs,
			Failures:    e.failures,
		})
		e.mu.Unlock()
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
