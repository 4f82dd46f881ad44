package models

import "time"

// Job kinds.
const (
	JobKindIngest       = "ingest"
	JobKindQuizGenerate = "quiz_generate"
)

// Job states. Completed and failed are terminal.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// JobModel is the durable record of a background job.
type JobModel struct {
	Base
	Kind        string     `json:"kind"                   gorm:"type:varchar(32);index;not null"`
	Fingerprint string     `json:"fingerprint,omitempty"  gorm:"type:varchar(64);index"`
	State       string     `json:"state"                  gorm:"type:varchar(16);index:idx_jobs_due,priority:1;not null"`
	NextRunAt   time.Time  `json:"next_run_at"            gorm:"index:idx_jobs_due,priority:2"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	Payload     string     `json:"-"                      gorm:"type:longtext"`
	ResultRef   string     `json:"result_ref,omitempty"`
	Error       string     `json:"error,omitempty"        gorm:"type:text"`
	ProgressPct int        `json:"progress_pct"`
	Checkpoint  int        `json:"checkpoint"`
	WorkerID    string     `json:"worker_id,omitempty"`
	HeartbeatAt *time.Time `json:"heartbeat_at,omitempty" gorm:"index"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ActorID     string     `json:"actor_id,omitempty"     gorm:"index"`
}

func (JobModel) TableName() string { return "jobs" }

// Terminal reports whether the job reached a final state.
func (j *JobModel) Terminal() bool {
	return j.State == JobCompleted || j.State == JobFailed
}
