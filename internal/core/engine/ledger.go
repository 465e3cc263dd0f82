package engine

import (
	"fmt"

	"harvester/internal/core/job"
	"harvester/internal/telemetry"
)

// ledger applies worker transitions to the engine's job table.
type ledger struct {
	e *Engine
}

func (l *ledger) Begin(id string) (job.Job, error) {
	e := l.e
	e.mu.Lock()
	j, ok := e.jobs[id]
	if !ok {
		e.mu.Unlock()
		return job.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err := j.MarkRunning(e.now()); err != nil {
		e.mu.Unlock()
		return job.Job{}, err
	}
	snap := j.Clone()
	e.mu.Unlock()

	telemetry.QueueDepth.Set(float64(e.queue.Size()))
	e.publishJob(id)
	return snap, nil
}

func (l *ledger) Complete(id string, result job.Result) error {
	e := l.e
	e.mu.Lock()
	j, ok := e.jobs[id]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err := j.MarkCompleted(result, e.now()); err != nil {
		e.mu.Unlock()
		return err
	}
	platform := j.Platform
	bulkID, hasBulk := e.refreshBulkLocked(id)
	e.mu.Unlock()

	telemetry.JobsFinished.WithLabelValues(platform, string(job.StatusCompleted)).Inc()
	e.publishJob(id)
	if hasBulk {
		e.publishBulk(bulkID)
	}
	return nil
}

func (l *ledger) Fail(id string, cause error) (bool, error) {
	e := l.e
	e.mu.Lock()
	j, ok := e.jobs[id]
	if !ok {
		e.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	requeued, err := j.MarkFailed(cause.Error(), !job.IsPermanent(cause), e.now())
	if err != nil {
		e.mu.Unlock()
		return false, err
	}
	platform := j.Platform
	var bulkID string
	hasBulk := false
	if !requeued {
		bulkID, hasBulk = e.refreshBulkLocked(id)
	}
	e.mu.Unlock()

	if requeued {
		telemetry.JobRetries.WithLabelValues(platform).Inc()
	} else {
		telemetry.JobsFinished.WithLabelValues(platform, string(job.StatusFailed)).Inc()
	}
	e.publishJob(id)
	if hasBulk {
		e.publishBulk(bulkID)
	}
	return requeued, nil
}

// refreshBulkLocked recounts the bulk job owning jobID, if any, and returns
// its id. The caller holds e.mu for writing.
func (e *Engine) refreshBulkLocked(jobID string) (string, bool) {
	bulkID, ok := e.bulkOf[jobID]
	if !ok {
		return "", false
	}
	e.recountLocked(e.bulks[bulkID])
	return bulkID, true
}

func (e *Engine) recountLocked(b *job.BulkJob) {
	statuses := make([]job.Status, 0, len(b.MemberIDs))
	for _, id := range b.MemberIDs {
		if j, ok := e.jobs[id]; ok {
			statuses = append(statuses, j.Status)
		}
	}
	b.Recount(statuses, e.now())
}
