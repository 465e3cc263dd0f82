package job

import "time"

// BulkJob groups the jobs created by one bulk submission. It owns no outcome
// state of its own: counts are recomputed from the member jobs.
type BulkJob struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	MemberIDs   []string   `json:"job_ids"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Total       int        `json:"total"`
	Completed   int        `json:"completed"`
	Failed      int        `json:"failed"`
}

func NewBulk(id, name string, memberIDs []string, now time.Time) *BulkJob {
	if id == "" {
		id = NewID()
	}
	return &BulkJob{
		ID:        id,
		Name:      name,
		MemberIDs: append([]string(nil), memberIDs...),
		Status:    StatusPending,
		CreatedAt: now,
		Total:     len(memberIDs),
	}
}

// Progress is the finished share of members as a percentage.
func (b *BulkJob) Progress() float64 {
	if b.Total == 0 {
		return 0
	}
	return float64(b.Completed+b.Failed) / float64(b.Total) * 100
}

// Recount refreshes the counters from member statuses and rolls the bulk job
// to Completed once every member is terminal. CompletedAt is stamped once.
func (b *BulkJob) Recount(statuses []Status, now time.Time) {
	completed, failed := 0, 0
	for _, s := range statuses {
		switch s {
		case StatusCompleted:
			completed++
		case StatusFailed:
			failed++
		}
	}
	b.Completed = completed
	b.Failed = failed
	if b.Total > 0 && b.Completed+b.Failed >= b.Total && b.Status != StatusCompleted {
		b.Status = StatusCompleted
		b.CompletedAt = &now
	}
}

func (b *BulkJob) Clone() BulkJob {
	c := *b
	c.MemberIDs = append([]string(nil), b.MemberIDs...)
	if b.CompletedAt != nil {
		t := *b.CompletedAt
		c.CompletedAt = &t
	}
	return c
}

// ResultRow is one member outcome of a bulk job, in submission order.
type ResultRow struct {
	JobID  string `json:"job_id"`
	Target string `json:"target"`
	Status Status `json:"status"`
	Result Result `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}
