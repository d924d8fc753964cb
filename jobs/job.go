package jobs

import (
	"time"

	"github.com/cockroachdb/errors"
)

// ErrNotFound is returned by Inspect for an unknown job ID.
var ErrNotFound = errors.New("jobs: job not found")

// ErrUnknownType is returned by Submit when no handler is registered for
// the job type.
var ErrUnknownType = errors.New("jobs: no handler registered for job type")

// Status is the lifecycle state of a job. The only legal transitions are
// StatusPending -> StatusRunning -> StatusDone or StatusFailed; the
// terminal states are never left.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Terminal reports whether s is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Job is one unit of queued work. The ID is assigned at submission and
// never changes. Result is set only when Status is StatusDone; Error only
// when Status is StatusFailed. Timestamps trace the lifecycle: SubmittedAt
// at creation, StartedAt when a worker claims the job, CompletedAt when it
// reaches a terminal state.
type Job struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Payload     map[string]any `json:"payload"`
	Status      Status         `json:"status"`
	Result      any            `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// clone returns a copy safe to hand to callers while workers keep
// mutating the original. Payload and Result are shared; callers must
// treat them as read-only.
func (j *Job) clone() Job {
	out := *j
	if j.StartedAt != nil {
		started := *j.StartedAt
		out.StartedAt = &started
	}
	if j.CompletedAt != nil {
		completed := *j.CompletedAt
		out.CompletedAt = &completed
	}
	return out
}
