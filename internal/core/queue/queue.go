// Package queue holds pending jobs in strict priority tiers, FIFO inside each
// tier. A steady stream of higher-tier work starves lower tiers; there is no
// aging.
package queue

import (
	"container/list"
	"slices"
	"sync"

	"harvester/internal/core/job"
)

type Queue struct {
	mu    sync.Mutex
	tiers map[job.Priority]*list.List
	order []job.Priority // descending
	size  int
}

func New() *Queue {
	return &Queue{tiers: make(map[job.Priority]*list.List)}
}

// Enqueue appends j to the tail of its priority tier.
func (q *Queue) Enqueue(j *job.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	tier, ok := q.tiers[j.Priority]
	if !ok {
		tier = list.New()
		q.tiers[j.Priority] = tier
		q.order = append(q.order, j.Priority)
		slices.SortFunc(q.order, func(a, b job.Priority) int { return int(b) - int(a) })
	}
	tier.PushBack(j)
	q.size++
}

// Dequeue removes the oldest job of the highest non-empty tier. It never
// blocks; ok is false when the queue is empty.
func (q *Queue) Dequeue() (*job.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, p := range q.order {
		tier := q.tiers[p]
		if front := tier.Front(); front != nil {
			tier.Remove(front)
			q.size--
			return front.Value.(*job.Job), true
		}
	}
	return nil, false
}

func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// SizeByTier reports the number of waiting jobs per priority.
func (q *Queue) SizeByTier() map[job.Priority]int {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make(map[job.Priority]int, len(q.tiers))
	for p, tier := range q.tiers {
		out[p] = tier.Len()
	}
	return out
}

// Clear drops every waiting job and returns how many were removed.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.size
	for _, tier := range q.tiers {
		tier.Init()
	}
	q.size = 0
	return n
}
