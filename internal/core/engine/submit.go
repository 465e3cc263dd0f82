package engine

import (
	"context"
	"fmt"
	"strings"

	"harvester/internal/core/job"
	"harvester/internal/telemetry"
)

// Submission describes a single job. Zero Priority means normal; nil
// MaxRetries means the engine default.
type Submission struct {
	ID         string         `json:"id,omitempty"`
	Kind       job.Kind       `json:"kind"`
	Platform   string         `json:"platform"`
	Target     string         `json:"target"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Priority   job.Priority   `json:"priority,omitempty"`
	MaxRetries *int           `json:"max_retries,omitempty"`
}

// BulkSubmission fans one kind/platform/parameters set out over many targets.
type BulkSubmission struct {
	ID         string         `json:"id,omitempty"`
	Name       string         `json:"name"`
	Kind       job.Kind       `json:"kind"`
	Platform   string         `json:"platform"`
	Targets    []string       `json:"targets"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Priority   job.Priority   `json:"priority,omitempty"`
	MaxRetries *int           `json:"max_retries,omitempty"`
}

type normalized struct {
	kind       job.Kind
	platform   string
	priority   job.Priority
	maxRetries int
}

func (e *Engine) normalize(kind job.Kind, platform string, priority job.Priority, maxRetries *int) (normalized, error) {
	s := normalized{kind: kind, platform: normalizePlatform(platform), priority: priority, maxRetries: e.cfg.DefaultMaxRetries}
	if !kind.Valid() {
		return s, fmt.Errorf("%w: %v", ErrInvalidSubmission, fmt.Errorf("%w: %q", job.ErrInvalidKind, kind))
	}
	if s.platform == "" {
		return s, fmt.Errorf("%w: platform is required", ErrInvalidSubmission)
	}
	if s.priority == 0 {
		s.priority = job.PriorityNormal
	}
	if s.priority < 0 {
		return s, fmt.Errorf("%w: %v", ErrInvalidSubmission, fmt.Errorf("%w: %d", job.ErrInvalidPriority, priority))
	}
	if maxRetries != nil {
		if *maxRetries < 0 {
			return s, fmt.Errorf("%w: max_retries must not be negative", ErrInvalidSubmission)
		}
		s.maxRetries = *maxRetries
	}
	return s, nil
}

// SubmitJob records a Pending job and queues it. It returns the job id.
func (e *Engine) SubmitJob(ctx context.Context, sub Submission) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, err := e.normalize(sub.Kind, sub.Platform, sub.Priority, sub.MaxRetries)
	if err != nil {
		return "", err
	}
	target := strings.TrimSpace(sub.Target)
	if target == "" {
		return "", fmt.Errorf("%w: target is required", ErrInvalidSubmission)
	}

	j := job.New(sub.ID, s.kind, s.platform, target, sub.Parameters, s.priority, s.maxRetries, e.now())

	e.mu.Lock()
	if _, exists := e.jobs[j.ID]; exists {
		e.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrDuplicateJob, j.ID)
	}
	e.jobs[j.ID] = j
	e.mu.Unlock()

	e.publishJob(j.ID)
	e.queue.Enqueue(j)
	telemetry.JobsSubmitted.WithLabelValues(s.platform, string(s.kind)).Inc()
	telemetry.QueueDepth.Set(float64(e.queue.Size()))

	e.log.LogDebugf("Queued %s job %s for %s (%s)", s.kind, j.ID, s.platform, s.priority)
	return j.ID, nil
}

// SubmitBulkJob creates one job per non-blank target and a bulk job that
// references them in submission order. It returns the bulk job id.
func (e *Engine) SubmitBulkJob(ctx context.Context, sub BulkSubmission) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, err := e.normalize(sub.Kind, sub.Platform, sub.Priority, sub.MaxRetries)
	if err != nil {
		return "", err
	}

	targets := make([]string, 0, len(sub.Targets))
	for _, t := range sub.Targets {
		if t = strings.TrimSpace(t); t != "" {
			targets = append(targets, t)
		}
	}
	if len(targets) == 0 {
		return "", fmt.Errorf("%w: at least one target is required", ErrInvalidSubmission)
	}
	if len(targets) > e.cfg.MaxBulkTargets {
		return "", fmt.Errorf("%w: %d targets, limit is %d", ErrTooManyTargets, len(targets), e.cfg.MaxBulkTargets)
	}

	now := e.now()
	members := make([]*job.Job, len(targets))
	ids := make([]string, len(targets))
	for i, t := range targets {
		members[i] = job.New("", s.kind, s.platform, t, sub.Parameters, s.priority, s.maxRetries, now)
		ids[i] = members[i].ID
	}
	name := sub.Name
	if name == "" {
		name = fmt.Sprintf("%s %s x%d", s.platform, s.kind, len(targets))
	}
	b := job.NewBulk(sub.ID, name, ids, now)

	e.mu.Lock()
	if _, exists := e.bulks[b.ID]; exists {
		e.mu.Unlock()
		return "", fmt.Errorf("%w: bulk %s", ErrDuplicateJob, b.ID)
	}
	for _, j := range members {
		e.jobs[j.ID] = j
		e.bulkOf[j.ID] = b.ID
	}
	e.bulks[b.ID] = b
	b.Status = job.StatusRunning
	e.mu.Unlock()

	for _, id := range ids {
		e.publishJob(id)
	}
	e.publishBulk(b.ID)
	for _, j := range members {
		e.queue.Enqueue(j)
	}
	telemetry.JobsSubmitted.WithLabelValues(s.platform, string(s.kind)).Add(float64(len(members)))
	telemetry.QueueDepth.Set(float64(e.queue.Size()))

	e.log.LogInfof("Queued bulk job %s (%q) with %d %s targets on %s", b.ID, name, len(members), s.kind, s.platform)
	return b.ID, nil
}
