package proxy

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"harvester/internal/logger"
	"harvester/internal/telemetry"
)

// Strategy selects among the proxies currently available.
type Strategy string

const (
	RoundRobin Strategy = "round_robin"
	Random     Strategy = "random"
	LeastUsed  Strategy = "least_used"
	Fastest    Strategy = "fastest"
	Best       Strategy = "best"
)

func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case RoundRobin, Random, LeastUsed, Fastest, Best:
		return st, nil
	case "":
		return Best, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

const (
	DefaultFailureThreshold = 5
	DefaultMaxPerMinute     = 30
	// bestEpsilon keeps the "best" score finite for proxies never timed.
	bestEpsilon = 0.1
)

type Config struct {
	Strategy Strategy
	// MaxPerMinute is the default per-proxy request cap; negative disables it.
	MaxPerMinute     int
	FailureThreshold int
	TestURL          string
	ProbeTimeout     time.Duration
	ProbeConcurrency int
	Prober           Prober
	Logger           *logger.Logger
}

type Pool struct {
	cfg    Config
	log    *logger.Logger
	prober Prober
	now    func() time.Time

	mu       sync.Mutex
	proxies  []*Proxy
	byAddr   map[string]*Proxy
	strategy Strategy
	next     int

	loopMu     sync.Mutex
	loopCancel func()
	loopDone   chan struct{}
}

func NewPool(cfg Config) *Pool {
	if cfg.Strategy == "" {
		cfg.Strategy = Best
	}
	if cfg.MaxPerMinute == 0 {
		cfg.MaxPerMinute = DefaultMaxPerMinute
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.TestURL == "" {
		cfg.TestURL = DefaultTestURL
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.ProbeConcurrency <= 0 {
		cfg.ProbeConcurrency = 16
	}
	log := cfg.Logger
	if log == nil {
		log = logger.New("ProxyPool")
	}
	prober := cfg.Prober
	if prober == nil {
		prober = &HTTPProber{TestURL: cfg.TestURL, Timeout: cfg.ProbeTimeout}
	}
	return &Pool{
		cfg:      cfg,
		log:      log,
		prober:   prober,
		now:      time.Now,
		byAddr:   make(map[string]*Proxy),
		strategy: cfg.Strategy,
	}
}

// Add registers a proxy. Credentials may be embedded in raw or given as an
// option.
func (pl *Pool) Add(raw string, opts ...Option) (*Proxy, error) {
	p, err := parse(raw, opts...)
	if err != nil {
		return nil, err
	}
	if p.maxPerMinute == 0 {
		p.maxPerMinute = pl.cfg.MaxPerMinute
	}

	pl.mu.Lock()
	defer pl.mu.Unlock()
	if _, ok := pl.byAddr[p.address]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateProxy, p.address)
	}
	pl.proxies = append(pl.proxies, p)
	pl.byAddr[p.address] = p
	pl.publishHealthy()
	return p, nil
}

// AddAll adds every entry, skipping blanks and comments. It returns the number
// added and the first error encountered.
func (pl *Pool) AddAll(entries []string) (int, error) {
	added := 0
	var firstErr error
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" || strings.HasPrefix(e, "#") {
			continue
		}
		if _, err := pl.Add(e); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		added++
	}
	if added > 0 {
		pl.log.LogInfof("Loaded %d proxies (strategy=%s)", added, pl.Strategy())
	}
	return added, firstErr
}

func (pl *Pool) Len() int {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return len(pl.proxies)
}

func (pl *Pool) HealthyCount() int {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.healthyLocked()
}

func (pl *Pool) healthyLocked() int {
	n := 0
	for _, p := range pl.proxies {
		if p.healthy {
			n++
		}
	}
	return n
}

func (pl *Pool) publishHealthy() {
	telemetry.HealthyProxies.Set(float64(pl.healthyLocked()))
}

func (pl *Pool) Strategy() Strategy {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.strategy
}

func (pl *Pool) SetStrategy(s Strategy) error {
	if _, err := ParseStrategy(string(s)); err != nil {
		return err
	}
	pl.mu.Lock()
	pl.strategy = s
	pl.mu.Unlock()
	return nil
}

// GetNext picks a healthy proxy under its per-minute cap according to the
// strategy and records the use. ok is false when none qualifies.
func (pl *Pool) GetNext() (p *Proxy, ok bool) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	now := pl.now()
	available := make([]*Proxy, 0, len(pl.proxies))
	for _, c := range pl.proxies {
		if c.usable(now) {
			available = append(available, c)
		}
	}
	if len(available) == 0 {
		return nil, false
	}

	p = pl.pick(available)
	p.stamp(now)
	return p, true
}

func (pl *Pool) pick(available []*Proxy) *Proxy {
	switch pl.strategy {
	case RoundRobin:
		p := available[pl.next%len(available)]
		pl.next++
		return p
	case Random:
		return available[rand.IntN(len(available))]
	case LeastUsed:
		chosen := available[0]
		for _, p := range available[1:] {
			if p.requestsThisMinute < chosen.requestsThisMinute {
				chosen = p
			}
		}
		return chosen
	case Fastest:
		chosen, best := available[0], math.Inf(1)
		for _, p := range available {
			if p.avgResponseTime <= 0 {
				continue
			}
			if t := p.avgResponseTime.Seconds(); t < best {
				chosen, best = p, t
			}
		}
		return chosen
	default:
		chosen, best := available[0], -1.0
		for _, p := range available {
			score := p.successRate() / (p.avgResponseTime.Seconds() + bestEpsilon)
			if score > best {
				chosen, best = p, score
			}
		}
		return chosen
	}
}

// ReportOutcome records the result of a request made through p. A success
// lowers the consecutive failure count by one; a failure raises it and takes
// the proxy out of rotation once it reaches the threshold. Only a passing
// health probe puts an unhealthy proxy back.
func (pl *Pool) ReportOutcome(p *Proxy, success bool, responseTime time.Duration) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if success {
		p.successes++
		p.consecutiveFailures = max(0, p.consecutiveFailures-1)
		if responseTime > 0 {
			n := time.Duration(p.successes)
			p.avgResponseTime = (p.avgResponseTime*(n-1) + responseTime) / n
		}
		return
	}

	p.failures++
	p.consecutiveFailures++
	if p.healthy && p.consecutiveFailures >= pl.cfg.FailureThreshold {
		p.healthy = false
		pl.log.LogWarnf("Proxy %s marked unhealthy after %d consecutive failures", p.address, p.consecutiveFailures)
		pl.publishHealthy()
	}
}

// State returns a copy of p's counters.
func (pl *Pool) State(p *Proxy) State {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return p.state()
}

// Lookup finds a pool member by address.
func (pl *Pool) Lookup(address string) (*Proxy, error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	p, ok := pl.byAddr[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProxy, address)
	}
	return p, nil
}

// Stats summarizes the pool.
type Stats struct {
	Total     int      `json:"total"`
	Healthy   int      `json:"healthy"`
	Available int      `json:"available"`
	Strategy  Strategy `json:"strategy"`
	Proxies   []State  `json:"proxies"`
}

func (pl *Pool) Stats() Stats {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	now := pl.now()
	st := Stats{Total: len(pl.proxies), Strategy: pl.strategy, Proxies: make([]State, 0, len(pl.proxies))}
	for _, p := range pl.proxies {
		if p.healthy {
			st.Healthy++
		}
		if p.usable(now) {
			st.Available++
		}
		st.Proxies = append(st.Proxies, p.state())
	}
	return st
}
