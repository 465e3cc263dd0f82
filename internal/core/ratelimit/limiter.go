// Package ratelimit keeps per-destination cool-down windows and retries
// operations with exponential backoff.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"harvester/internal/logger"
	"harvester/internal/telemetry"
)

type Config struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// MaxRetries is the attempt budget used when ExecuteWithRetry is given none.
	MaxRetries int
	// Cooldown applies when a destination throttles without saying for how long.
	Cooldown time.Duration
	// Jitter is the +/- fraction applied to every backoff delay. Zero selects
	// the default; a negative value disables jitter.
	Jitter float64
	Logger *logger.Logger
}

func DefaultConfig() Config {
	return Config{
		BaseDelay:  time.Second,
		MaxDelay:   60 * time.Second,
		Multiplier: 2.0,
		MaxRetries: 5,
		Cooldown:   60 * time.Second,
		Jitter:     0.2,
	}
}

type Limiter struct {
	cfg Config
	log *logger.Logger
	now func() time.Time

	mu      sync.Mutex
	blocked map[string]time.Time
}

func New(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	switch {
	case cfg.Jitter < 0:
		cfg.Jitter = 0
	case cfg.Jitter == 0 || cfg.Jitter >= 1:
		cfg.Jitter = def.Jitter
	}
	log := cfg.Logger
	if log == nil {
		log = logger.New("RateLimiter")
	}
	return &Limiter{cfg: cfg, log: log, now: time.Now, blocked: make(map[string]time.Time)}
}

// WaitIfNeeded blocks until key's cool-down window has passed. It returns at
// once when key is not limited, and early with ctx.Err() on cancellation.
func (l *Limiter) WaitIfNeeded(ctx context.Context, key string) error {
	l.mu.Lock()
	until, ok := l.blocked[key]
	l.mu.Unlock()
	if !ok {
		return nil
	}
	wait := until.Sub(l.now())
	if wait <= 0 {
		return nil
	}
	l.log.LogInfof("Rate limited on %s, waiting %s", key, wait.Round(time.Millisecond))
	return sleep(ctx, wait)
}

// MarkRateLimited blocks key for the default cool-down.
func (l *Limiter) MarkRateLimited(key string) {
	l.MarkRateLimitedFor(key, l.cfg.Cooldown)
}

// MarkRateLimitedFor blocks key for d as instructed by the destination. A
// non-positive d leaves key usable immediately.
func (l *Limiter) MarkRateLimitedFor(key string, d time.Duration) {
	until := l.now()
	if d > 0 {
		until = until.Add(d)
	}
	l.mu.Lock()
	l.blocked[key] = until
	l.mu.Unlock()
	telemetry.RateLimitMarks.Inc()
	l.log.LogWarnf("Marked %s as rate limited for %s", key, max(d, 0))
}

// Observe marks key when err looks like throttling, honoring an explicit
// retry-after. It reports whether key was marked.
func (l *Limiter) Observe(key string, err error) bool {
	if !IsRateLimited(err) {
		return false
	}
	if d, ok := retryAfterOf(err); ok {
		l.MarkRateLimitedFor(key, d)
	} else {
		l.MarkRateLimited(key)
	}
	return true
}

// BlockedUntil returns the end of key's cool-down window, if it is still open.
func (l *Limiter) BlockedUntil(key string) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	until, ok := l.blocked[key]
	if !ok || !until.After(l.now()) {
		return time.Time{}, false
	}
	return until, true
}

// Reset forgets key's window.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	delete(l.blocked, key)
	l.mu.Unlock()
}

// Backoff is the un-jittered delay for a zero-based attempt.
func (l *Limiter) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(l.cfg.BaseDelay) * math.Pow(l.cfg.Multiplier, float64(attempt))
	if d > float64(l.cfg.MaxDelay) || math.IsInf(d, 0) {
		return l.cfg.MaxDelay
	}
	return time.Duration(d)
}

// CalculateDelay is Backoff with +/- Jitter applied.
func (l *Limiter) CalculateDelay(attempt int) time.Duration {
	d := float64(l.Backoff(attempt))
	jitter := d * l.cfg.Jitter * (rand.Float64()*2 - 1)
	return time.Duration(d + jitter)
}

// ExecuteWithRetry runs op up to maxRetries times (the configured budget when
// maxRetries <= 0). Before each attempt it waits out key's cool-down; an error
// that looks like throttling marks key. The final error is returned wrapped in
// ErrRetriesExhausted.
func (l *Limiter) ExecuteWithRetry(ctx context.Context, key string, maxRetries int, op func(context.Context) error) error {
	if maxRetries <= 0 {
		maxRetries = l.cfg.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := l.WaitIfNeeded(ctx, key); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var abort *abortError
		if errors.As(lastErr, &abort) {
			return abort.err
		}

		l.Observe(key, lastErr)

		if attempt == maxRetries-1 {
			break
		}
		delay := l.CalculateDelay(attempt)
		l.log.LogDebugf("Attempt %d/%d on %s failed: %v; retrying in %s", attempt+1, maxRetries, key, lastErr, delay.Round(time.Millisecond))
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, maxRetries, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
