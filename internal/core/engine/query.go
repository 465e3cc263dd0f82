package engine

import (
	"fmt"
	"io"

	"harvester/internal/core/export"
	"harvester/internal/core/job"
)

// GetJob returns a copy of the job.
func (e *Engine) GetJob(id string) (job.Job, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	j, ok := e.jobs[id]
	if !ok {
		return job.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return j.Clone(), nil
}

// GetBulkJob recounts the bulk job from its members, rolling it to Completed
// once every member is terminal, and returns a copy.
func (e *Engine) GetBulkJob(id string) (job.BulkJob, error) {
	e.mu.Lock()
	b, ok := e.bulks[id]
	if !ok {
		e.mu.Unlock()
		return job.BulkJob{}, fmt.Errorf("%w: %s", ErrBulkJobNotFound, id)
	}
	before := b.Status
	e.recountLocked(b)
	snap := b.Clone()
	e.mu.Unlock()

	if snap.Status != before {
		e.publishBulk(id)
	}
	return snap, nil
}

// BulkJobResults returns one row per member in submission order.
func (e *Engine) BulkJobResults(id string) ([]job.ResultRow, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.bulks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBulkJobNotFound, id)
	}
	rows := make([]job.ResultRow, 0, len(b.MemberIDs))
	for _, mid := range b.MemberIDs {
		if j, ok := e.jobs[mid]; ok {
			rows = append(rows, j.Row())
		}
	}
	return rows, nil
}

// rows resolves id as a bulk job first and then as a single job.
func (e *Engine) rows(id string) ([]job.ResultRow, error) {
	rows, err := e.BulkJobResults(id)
	if err == nil {
		return rows, nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	j, ok := e.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return []job.ResultRow{j.Row()}, nil
}

// ExportJSON writes the export document for a bulk job or a single job.
func (e *Engine) ExportJSON(id string, w io.Writer) error {
	rows, err := e.rows(id)
	if err != nil {
		return err
	}
	return export.JSON(w, id, rows, e.now())
}

// ExportCSV writes the flattened table for a bulk job or a single job.
func (e *Engine) ExportCSV(id string, w io.Writer) error {
	rows, err := e.rows(id)
	if err != nil {
		return err
	}
	return export.CSV(w, rows)
}

type Stats struct {
	TotalJobs             int `json:"total_jobs"`
	Completed             int `json:"completed"`
	Failed                int `json:"failed"`
	Running               int `json:"running"`
	Pending               int `json:"pending"`
	BulkJobs              int `json:"bulk_jobs"`
	ActiveBulkJobs        int `json:"active_bulk_jobs"`
	MaxConcurrentBulkJobs int `json:"max_concurrent_bulk_jobs"`
	Workers               int `json:"workers"`
	ActiveWorkers         int `json:"active_workers"`
	QueueSize             int `json:"queue_size"`
	ProxiesTotal          int `json:"proxies_total"`
	ProxiesHealthy        int `json:"proxies_healthy"`
}

func (e *Engine) Stats() Stats {
	st := Stats{
		MaxConcurrentBulkJobs: e.cfg.MaxConcurrentBulkJobs,
		Workers:               e.pool.Workers(),
		ActiveWorkers:         e.pool.Active(),
		QueueSize:             e.queue.Size(),
		ProxiesTotal:          e.proxies.Len(),
		ProxiesHealthy:        e.proxies.HealthyCount(),
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	st.TotalJobs = len(e.jobs)
	for _, j := range e.jobs {
		switch j.Status {
		case job.StatusCompleted:
			st.Completed++
		case job.StatusFailed:
			st.Failed++
		case job.StatusRunning:
			st.Running++
		case job.StatusPending:
			st.Pending++
		}
	}
	st.BulkJobs = len(e.bulks)
	for _, b := range e.bulks {
		if !b.Status.IsTerminal() {
			st.ActiveBulkJobs++
		}
	}
	return st
}
