package job

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Result is the structured record a capability returns for a job.
type Result map[string]any

// Job is a single unit of scraping work. The engine owns every Job; callers
// only ever see copies returned by Clone.
type Job struct {
	ID          string         `json:"id"`
	Kind        Kind           `json:"kind"`
	Platform    string         `json:"platform"`
	Target      string         `json:"target"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Status      Status         `json:"status"`
	Priority    Priority       `json:"priority"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Result      Result         `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	RetryCount  int            `json:"retry_count"`
	MaxRetries  int            `json:"max_retries"`
}

// NewID returns a fresh job or bulk job identifier.
func NewID() string { return uuid.NewString() }

// New builds a Pending job. An empty id gets a generated one.
func New(id string, kind Kind, platform, target string, params map[string]any, priority Priority, maxRetries int, now time.Time) *Job {
	if id == "" {
		id = NewID()
	}
	return &Job{
		ID:         id,
		Kind:       kind,
		Platform:   platform,
		Target:     target,
		Parameters: copyMap(params),
		Status:     StatusPending,
		Priority:   priority,
		CreatedAt:  now,
		MaxRetries: maxRetries,
	}
}

// MarkRunning moves a Pending job to Running and stamps StartedAt with the
// start of the current attempt.
func (j *Job) MarkRunning(now time.Time) error {
	if j.Status != StatusPending {
		return j.transitionErr(StatusRunning)
	}
	j.Status = StatusRunning
	j.StartedAt = &now
	return nil
}

// MarkCompleted records a successful attempt. Any error left by an earlier
// attempt is cleared.
func (j *Job) MarkCompleted(result Result, now time.Time) error {
	if j.Status != StatusRunning {
		return j.transitionErr(StatusCompleted)
	}
	if result == nil {
		result = Result{}
	}
	j.Status = StatusCompleted
	j.Result = result
	j.Error = ""
	j.CompletedAt = &now
	return nil
}

// MarkFailed records a failed attempt. When retryable and budget remains the
// job goes back to Pending with RetryCount incremented and requeued is true;
// otherwise it becomes terminally Failed.
func (j *Job) MarkFailed(msg string, retryable bool, now time.Time) (requeued bool, err error) {
	if j.Status != StatusRunning {
		return false, j.transitionErr(StatusFailed)
	}
	j.Error = msg
	if retryable && j.RetryCount < j.MaxRetries {
		j.RetryCount++
		j.Status = StatusPending
		return true, nil
	}
	j.Status = StatusFailed
	j.Result = nil
	j.CompletedAt = &now
	return false, nil
}

func (j *Job) transitionErr(to Status) error {
	return fmt.Errorf("%w: job %s %s -> %s", ErrInvalidTransition, j.ID, j.Status, to)
}

// Destination is the rate limiting key for the job: the platform, or the
// target host for url jobs on the generic web platform.
func (j *Job) Destination() string {
	if j.Kind == KindURL {
		if host := hostOf(j.Target); host != "" {
			return j.Platform + ":" + host
		}
	}
	return j.Platform
}

// Clone returns a deep copy safe to hand outside the engine.
func (j *Job) Clone() Job {
	c := *j
	c.Parameters = copyMap(j.Parameters)
	if j.Result != nil {
		c.Result = Result(copyMap(j.Result))
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return c
}

// Row flattens the job into its export row.
func (j *Job) Row() ResultRow {
	c := j.Clone()
	return ResultRow{JobID: c.ID, Target: c.Target, Status: c.Status, Result: c.Result, Error: c.Error}
}
