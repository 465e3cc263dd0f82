// Package engine is the entry point for scraping work. It owns the job table,
// the priority queue, the worker pool, the proxy pool and the rate limiter,
// and exposes submission, query, statistics and export operations.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"harvester/internal/core/job"
	"harvester/internal/core/proxy"
	"harvester/internal/core/queue"
	"harvester/internal/core/ratelimit"
	"harvester/internal/core/worker"
	"harvester/internal/logger"
)

type Config struct {
	Workers int
	// Permits bounds concurrently executing jobs; zero means Workers.
	Permits      int
	RequestDelay time.Duration
	IdleWait     time.Duration
	// MaxConcurrentBulkJobs is advisory: it is reported in Stats for callers
	// that want to hold back new bulk submissions.
	MaxConcurrentBulkJobs int
	// DefaultMaxRetries applies when a submission does not set MaxRetries.
	DefaultMaxRetries int
	MaxBulkTargets    int
	// HealthCheckInterval enables the periodic proxy health loop while the
	// engine runs. Zero disables it.
	HealthCheckInterval time.Duration

	RateLimit ratelimit.Config
	Proxy     proxy.Config
}

func DefaultConfig() Config {
	return Config{
		Workers:               20,
		RequestDelay:          300 * time.Millisecond,
		IdleWait:              100 * time.Millisecond,
		MaxConcurrentBulkJobs: 5,
		DefaultMaxRetries:     3,
		MaxBulkTargets:        5000,
		HealthCheckInterval:   5 * time.Minute,
		RateLimit:             ratelimit.DefaultConfig(),
		Proxy:                 proxy.Config{Strategy: proxy.Best},
	}
}

// Sink receives a snapshot after every job or bulk job change.
type Sink interface {
	StoreJob(ctx context.Context, j job.Job) error
	StoreBulk(ctx context.Context, b job.BulkJob) error
}

type Option func(*Engine)

func WithLogger(l *logger.Logger) Option { return func(e *Engine) { e.log = l } }
func WithSink(s Sink) Option             { return func(e *Engine) { e.sink = s } }
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithProber sets the probe used by proxy health checks.
func WithProber(p proxy.Prober) Option { return func(e *Engine) { e.cfg.Proxy.Prober = p } }

// WithProxyPool replaces the pool built from Config.Proxy.
func WithProxyPool(p *proxy.Pool) Option { return func(e *Engine) { e.proxies = p } }

// WithLimiter replaces the limiter built from Config.RateLimit.
func WithLimiter(l *ratelimit.Limiter) Option { return func(e *Engine) { e.limiter = l } }

type lifecycle int

const (
	idle lifecycle = iota
	running
	stopped
)

type Engine struct {
	cfg  Config
	log  *logger.Logger
	now  func() time.Time
	sink Sink

	registry *Registry
	queue    *queue.Queue
	pool     *worker.Pool
	proxies  *proxy.Pool
	limiter  *ratelimit.Limiter

	mu     sync.RWMutex
	jobs   map[string]*job.Job
	bulks  map[string]*job.BulkJob
	bulkOf map[string]string

	pub publisher

	lifeMu sync.Mutex
	state  lifecycle
}

func New(cfg Config, opts ...Option) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.DefaultMaxRetries < 0 {
		cfg.DefaultMaxRetries = 0
	}
	if cfg.MaxBulkTargets <= 0 {
		cfg.MaxBulkTargets = 5000
	}

	e := &Engine{
		cfg:      cfg,
		now:      time.Now,
		registry: NewRegistry(),
		queue:    queue.New(),
		jobs:     make(map[string]*job.Job),
		bulks:    make(map[string]*job.BulkJob),
		bulkOf:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.New("Engine")
	}
	if e.sink == nil {
		e.sink = nopSink{}
	}
	if e.limiter == nil {
		rl := e.cfg.RateLimit
		if rl.Logger == nil {
			rl.Logger = e.log
		}
		e.limiter = ratelimit.New(rl)
	}
	if e.proxies == nil {
		pc := e.cfg.Proxy
		if pc.Logger == nil {
			pc.Logger = e.log
		}
		e.proxies = proxy.NewPool(pc)
	}
	e.pool = worker.New(worker.Config{
		Workers:  cfg.Workers,
		Permits:  cfg.Permits,
		Delay:    cfg.RequestDelay,
		IdleWait: cfg.IdleWait,
		Limiter:  e.limiter,
		Logger:   e.log,
	})
	return e
}

func (e *Engine) Proxies() *proxy.Pool              { return e.proxies }
func (e *Engine) Limiter() *ratelimit.Limiter       { return e.limiter }
func (e *Engine) Platforms() []string               { return e.registry.Platforms() }
func (e *Engine) QueueSize() int                    { return e.queue.Size() }
func (e *Engine) QueueByTier() map[job.Priority]int { return e.queue.SizeByTier() }

// RegisterCapability installs c as the handler for platform. Registering the
// same platform again replaces the previous capability.
func (e *Engine) RegisterCapability(platform string, c Capability) error {
	if err := e.registry.Register(platform, c); err != nil {
		return err
	}
	e.log.LogInfof("Registered capability for platform %q", normalizePlatform(platform))
	return nil
}

// Start launches the worker pool and, when configured, the proxy health loop.
// The loop also covers proxies added after Start. An engine can be started
// once.
func (e *Engine) Start(ctx context.Context) error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	switch e.state {
	case running:
		return ErrAlreadyStarted
	case stopped:
		return ErrStopped
	}

	if err := e.pool.Start(ctx, e.queue, &ledger{e: e}, e.execute); err != nil {
		return fmt.Errorf("start worker pool: %w", err)
	}
	if e.cfg.HealthCheckInterval > 0 {
		e.proxies.StartHealthChecks(ctx, e.cfg.HealthCheckInterval)
	}
	e.state = running
	e.log.LogSuccessf("Engine started with %d workers, %d queued jobs", e.cfg.Workers, e.queue.Size())
	return nil
}

// Stop halts the workers and the health loop, then flushes pending snapshots
// to the sink. Queued jobs stay queued; a job mid-execution keeps its Running
// status.
func (e *Engine) Stop() error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	if e.state != running {
		return ErrNotStarted
	}
	err := e.pool.Stop()
	e.proxies.StopHealthChecks()
	e.Flush()
	e.state = stopped
	e.log.LogInfof("Engine stopped, %d jobs left in queue", e.queue.Size())
	return err
}

func (e *Engine) Running() bool {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	return e.state == running
}

// execute resolves the capability for a job and runs one attempt.
func (e *Engine) execute(ctx context.Context, j job.Job) (job.Result, error) {
	c, err := e.registry.Get(j.Platform)
	if err != nil {
		return nil, job.Permanent(err)
	}
	if ks, ok := c.(KindSupporter); ok && !ks.Supports(j.Kind) {
		return nil, job.Permanent(fmt.Errorf("%w: %s on %s", job.ErrUnsupportedKind, j.Kind, j.Platform))
	}
	return c.Execute(ctx, j)
}

type nopSink struct{}

func (nopSink) StoreJob(context.Context, job.Job) error      { return nil }
func (nopSink) StoreBulk(context.Context, job.BulkJob) error { return nil }
