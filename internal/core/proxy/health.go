package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultTestURL      = "https://httpbin.org/ip"
	DefaultProbeTimeout = 10 * time.Second
)

// Prober measures whether a proxy can reach the outside world.
type Prober interface {
	Probe(ctx context.Context, p *Proxy) (time.Duration, error)
}

// HTTPProber fetches TestURL through the proxy and expects a 2xx answer.
type HTTPProber struct {
	TestURL string
	Timeout time.Duration
}

func (h *HTTPProber) Probe(ctx context.Context, p *Proxy) (time.Duration, error) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyURL(p.URL()), DisableKeepAlives: true},
		Timeout:   timeout,
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.TestURL, nil)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	elapsed := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return elapsed, fmt.Errorf("probe via %s: status %d", p.address, resp.StatusCode)
	}
	return elapsed, nil
}

// HealthCheckAll probes every proxy concurrently and returns how many are
// healthy afterwards. A passing probe restores the proxy and clears its
// failure streak; a failing one takes it out of rotation and extends the
// streak. Probes interrupted by ctx cancellation leave the proxy untouched.
func (pl *Pool) HealthCheckAll(ctx context.Context) int {
	pl.mu.Lock()
	members := append([]*Proxy(nil), pl.proxies...)
	pl.mu.Unlock()
	if len(members) == 0 {
		return 0
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pl.cfg.ProbeConcurrency)
	for _, p := range members {
		g.Go(func() error {
			rt, err := pl.prober.Probe(gctx, p)
			if gctx.Err() != nil {
				// interrupted by shutdown
				return nil
			}
			pl.recordProbe(p, rt, err)
			return nil
		})
	}
	_ = g.Wait()

	healthy := pl.HealthyCount()
	pl.log.LogInfof("Health check complete: %d/%d proxies healthy", healthy, len(members))
	return healthy
}

func (pl *Pool) recordProbe(p *Proxy, rt time.Duration, err error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	p.lastChecked = pl.now()
	if err != nil {
		p.healthy = false
		p.consecutiveFailures++
		pl.log.LogDebugf("Proxy %s failed health check: %v", p.address, err)
	} else {
		p.healthy = true
		p.consecutiveFailures = 0
		p.avgResponseTime = rt
	}
	pl.publishHealthy()
}

// StartHealthChecks runs HealthCheckAll now and then every interval until
// StopHealthChecks or ctx cancellation. It returns false if a loop is already
// running.
func (pl *Pool) StartHealthChecks(ctx context.Context, interval time.Duration) bool {
	pl.loopMu.Lock()
	defer pl.loopMu.Unlock()
	if pl.loopCancel != nil || interval <= 0 {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	pl.loopCancel, pl.loopDone = cancel, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			pl.HealthCheckAll(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	pl.log.LogInfof("Started proxy health checks every %s", interval)
	return true
}

// StopHealthChecks stops the loop and waits for it to exit. Calling it when
// no loop runs is a no-op.
func (pl *Pool) StopHealthChecks() {
	pl.loopMu.Lock()
	cancel, done := pl.loopCancel, pl.loopDone
	pl.loopCancel, pl.loopDone = nil, nil
	pl.loopMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
