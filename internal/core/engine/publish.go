package engine

import (
	"context"
	"sync"
	"time"

	"harvester/internal/core/job"
)

const publishTimeout = 2 * time.Second

type pubKey struct {
	bulk bool
	id   string
}

// publisher hands snapshots to the sink off the workers' path. Marks are
// coalesced per id and every write re-reads the table, so the sink's last
// write for an id always carries the newest state. At most one drain
// goroutine runs at a time.
type publisher struct {
	mu       sync.Mutex
	queue    []pubKey
	pending  map[pubKey]bool
	draining bool
	idle     chan struct{}
}

func (e *Engine) publishJob(id string)  { e.markDirty(pubKey{id: id}) }
func (e *Engine) publishBulk(id string) { e.markDirty(pubKey{bulk: true, id: id}) }

func (e *Engine) markDirty(k pubKey) {
	p := &e.pub
	p.mu.Lock()
	if p.pending == nil {
		p.pending = make(map[pubKey]bool)
	}
	if p.pending[k] {
		p.mu.Unlock()
		return
	}
	p.pending[k] = true
	p.queue = append(p.queue, k)
	if p.draining {
		p.mu.Unlock()
		return
	}
	p.draining = true
	p.idle = make(chan struct{})
	p.mu.Unlock()

	go e.drain()
}

func (e *Engine) drain() {
	p := &e.pub
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.draining = false
			close(p.idle)
			p.mu.Unlock()
			return
		}
		k := p.queue[0]
		p.queue = p.queue[1:]
		delete(p.pending, k)
		p.mu.Unlock()

		if k.bulk {
			e.storeBulk(k.id)
		} else {
			e.storeJob(k.id)
		}
	}
}

// Flush waits until every snapshot marked so far has been handed to the
// sink.
func (e *Engine) Flush() {
	p := &e.pub
	p.mu.Lock()
	if !p.draining {
		p.mu.Unlock()
		return
	}
	idle := p.idle
	p.mu.Unlock()
	<-idle
}

func (e *Engine) storeJob(id string) {
	e.mu.RLock()
	j, ok := e.jobs[id]
	var snap job.Job
	if ok {
		snap = j.Clone()
	}
	e.mu.RUnlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := e.sink.StoreJob(ctx, snap); err != nil {
		e.log.LogWarnf("Publishing job %s snapshot: %v", id, err)
	}
}

func (e *Engine) storeBulk(id string) {
	e.mu.RLock()
	b, ok := e.bulks[id]
	var snap job.BulkJob
	if ok {
		snap = b.Clone()
	}
	e.mu.RUnlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := e.sink.StoreBulk(ctx, snap); err != nil {
		e.log.LogWarnf("Publishing bulk job %s snapshot: %v", id, err)
	}
}
