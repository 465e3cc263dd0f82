// Package worker runs a fixed set of goroutines that drain the job queue,
// execute each job through a capability and apply the retry policy.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"harvester/internal/core/job"
	"harvester/internal/core/ratelimit"
	"harvester/internal/logger"
	"harvester/internal/telemetry"

	"golang.org/x/sync/semaphore"
)

var (
	ErrAlreadyStarted = errors.New("worker pool already started")
	ErrNotStarted     = errors.New("worker pool not started")
)

// ExecuteFunc performs one attempt of a job. It receives a copy of the job.
type ExecuteFunc func(ctx context.Context, j job.Job) (job.Result, error)

// Queue is the part of the priority queue the pool needs.
type Queue interface {
	Dequeue() (*job.Job, bool)
	Enqueue(*job.Job)
}

// Ledger owns job state. The pool reports every transition through it and
// never mutates a job itself.
type Ledger interface {
	// Begin moves the job to Running and returns a copy for execution.
	Begin(id string) (job.Job, error)
	Complete(id string, result job.Result) error
	// Fail records a failed attempt; requeue tells the pool to enqueue the
	// job again.
	Fail(id string, cause error) (requeue bool, err error)
}

type Config struct {
	Workers int
	// Permits caps concurrent executions below Workers. Zero means Workers.
	Permits int
	// Delay is the pause each worker takes after every job.
	Delay time.Duration
	// IdleWait is how long a worker sleeps when the queue is empty.
	IdleWait time.Duration
	// Limiter, when set, holds a job back while its destination cools down
	// and is told about throttling failures.
	Limiter *ratelimit.Limiter
	Logger  *logger.Logger
}

type Pool struct {
	cfg Config
	log *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	active atomic.Int64
}

func New(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Permits <= 0 || cfg.Permits > cfg.Workers {
		cfg.Permits = cfg.Workers
	}
	if cfg.IdleWait <= 0 {
		cfg.IdleWait = 100 * time.Millisecond
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	log := cfg.Logger
	if log == nil {
		log = logger.New("WorkerPool")
	}
	return &Pool{cfg: cfg, log: log}
}

func (p *Pool) Workers() int { return p.cfg.Workers }

// Active is the number of jobs executing right now.
func (p *Pool) Active() int { return int(p.active.Load()) }

func (p *Pool) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Start launches the workers. They run until Stop or ctx cancellation.
func (p *Pool) Start(ctx context.Context, q Queue, ledger Ledger, exec ExecuteFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	permits := semaphore.NewWeighted(int64(p.cfg.Permits))
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.loop(ctx, i, permits, q, ledger, exec)
	}
	p.log.LogInfof("Started %d workers (%d concurrent permits, delay %s)", p.cfg.Workers, p.cfg.Permits, p.cfg.Delay)
	return nil
}

// Stop cancels every worker and waits for them to return. A job that was
// executing keeps whatever status it had.
func (p *Pool) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrNotStarted
	}
	p.cancel()
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
	p.log.LogInfof("All workers stopped")
	return nil
}

func (p *Pool) loop(ctx context.Context, id int, permits *semaphore.Weighted, q Queue, ledger Ledger, exec ExecuteFunc) {
	defer p.wg.Done()
	log := p.log.With("worker", id)

	for {
		if err := permits.Acquire(ctx, 1); err != nil {
			return
		}
		worked := p.step(ctx, log, q, ledger, exec)
		permits.Release(1)

		wait := p.cfg.Delay
		if !worked {
			wait = p.cfg.IdleWait
		}
		if !sleep(ctx, wait) {
			return
		}
	}
}

// step processes at most one job and reports whether it found one.
func (p *Pool) step(ctx context.Context, log *logger.Logger, q Queue, ledger Ledger, exec ExecuteFunc) bool {
	queued, ok := q.Dequeue()
	if !ok {
		return false
	}

	j, err := ledger.Begin(queued.ID)
	if err != nil {
		log.LogWarnf("Skipping job %s: %v", queued.ID, err)
		return true
	}

	p.active.Add(1)
	telemetry.ActiveWorkers.Inc()
	result, execErr := p.execute(ctx, j, exec)
	telemetry.ActiveWorkers.Dec()
	p.active.Add(-1)

	if execErr == nil {
		if err := ledger.Complete(j.ID, result); err != nil {
			log.LogErrorf("Recording completion of %s: %v", j.ID, err)
		}
		return true
	}

	// Interrupted by Stop: leave the job as it is rather than spend a retry.
	if ctx.Err() != nil {
		log.LogDebugf("Job %s interrupted by shutdown: %v", j.ID, execErr)
		return true
	}

	if p.cfg.Limiter != nil {
		p.cfg.Limiter.Observe(j.Destination(), execErr)
	}

	requeue, err := ledger.Fail(j.ID, execErr)
	if err != nil {
		log.LogErrorf("Recording failure of %s: %v", j.ID, err)
		return true
	}
	if requeue {
		log.LogDebugf("Job %s failed (%v), requeued", j.ID, execErr)
		q.Enqueue(queued)
	} else {
		log.LogWarnf("Job %s failed permanently: %v", j.ID, execErr)
	}
	return true
}

// execute waits out the destination's cool-down and runs the capability,
// turning a panic into an error. The call runs on its own goroutine so that
// cancellation returns at once even when the capability ignores ctx; such a
// call is abandoned and finishes on its own.
func (p *Pool) execute(ctx context.Context, j job.Job, exec ExecuteFunc) (job.Result, error) {
	if p.cfg.Limiter != nil {
		if err := p.cfg.Limiter.WaitIfNeeded(ctx, j.Destination()); err != nil {
			return nil, err
		}
	}

	type outcome struct {
		result job.Result
		err    error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		var o outcome
		defer func() {
			if r := recover(); r != nil {
				p.log.LogErrorf("Capability panicked on job %s: %v\n%s", j.ID, r, debug.Stack())
				o = outcome{err: fmt.Errorf("capability panic: %v", r)}
			}
			done <- o
		}()
		o.result, o.err = exec(ctx, j)
	}()

	select {
	case o := <-done:
		telemetry.JobDuration.WithLabelValues(j.Platform).Observe(time.Since(start).Seconds())
		return o.result, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
