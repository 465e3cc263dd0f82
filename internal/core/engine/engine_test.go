package engine

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"harvester/internal/core/job"
	"harvester/internal/core/proxy"
	"harvester/internal/logger"
	rds "harvester/internal/platform/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.RequestDelay = time.Millisecond
	cfg.IdleWait = time.Millisecond
	cfg.HealthCheckInterval = 0
	cfg.RateLimit.BaseDelay = time.Millisecond
	cfg.RateLimit.MaxDelay = 5 * time.Millisecond
	return cfg
}

func newTestEngine(t *testing.T, mutate func(*Config), opts ...Option) *Engine {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	e := New(cfg, append([]Option{WithLogger(logger.Nop())}, opts...)...)
	t.Cleanup(func() {
		if e.Running() {
			_ = e.Stop()
		}
	})
	return e
}

func retries(n int) *int { return &n }

func waitTerminal(t *testing.T, e *Engine, ids ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, id := range ids {
			j, err := e.GetJob(id)
			if err != nil || !j.Status.IsTerminal() {
				return false
			}
		}
		return true
	}, 3*time.Second, 5*time.Millisecond)
}

func echo(_ context.Context, j job.Job) (job.Result, error) {
	return job.Result{"target": j.Target}, nil
}

func TestSubmitAndComplete(t *testing.T) {
	e := newTestEngine(t, nil)
	require.NoError(t, e.RegisterCapability("Web", CapabilityFunc(echo)))

	id, err := e.SubmitJob(context.Background(), Submission{Kind: job.KindURL, Platform: "web", Target: " https://a.test "})
	require.NoError(t, err)

	j, err := e.GetJob(id)
	require.NoError(t, err)
	assert.Equal(t, job.StatusPending, j.Status)
	assert.Equal(t, "https://a.test", j.Target)
	assert.Equal(t, job.PriorityNormal, j.Priority)
	assert.Equal(t, 3, j.MaxRetries)
	assert.Equal(t, 1, e.QueueSize())

	require.NoError(t, e.Start(context.Background()))
	waitTerminal(t, e, id)

	j, err = e.GetJob(id)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, j.Status)
	assert.Equal(t, "https://a.test", j.Result["target"])
	assert.Empty(t, j.Error)
	assert.Zero(t, e.QueueSize())
}

func TestHigherPriorityRunsFirst(t *testing.T) {
	e := newTestEngine(t, func(c *Config) { c.Workers = 1 })

	var mu sync.Mutex
	var order []string
	require.NoError(t, e.RegisterCapability("web", CapabilityFunc(func(_ context.Context, j job.Job) (job.Result, error) {
		mu.Lock()
		order = append(order, j.Target)
		mu.Unlock()
		return job.Result{}, nil
	})))

	ctx := context.Background()
	var ids []string
	for _, s := range []struct {
		target string
		p      job.Priority
	}{{"low", job.PriorityLow}, {"urgent", job.PriorityUrgent}, {"normal", job.PriorityNormal}, {"high", job.PriorityHigh}} {
		id, err := e.SubmitJob(ctx, Submission{Kind: job.KindProfile, Platform: "web", Target: s.target, Priority: s.p})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.NoError(t, e.Start(ctx))
	waitTerminal(t, e, ids...)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"urgent", "high", "normal", "low"}, order)
}

func TestRetryBudgetIsHonored(t *testing.T) {
	e := newTestEngine(t, nil)
	var calls atomic.Int32
	require.NoError(t, e.RegisterCapability("web", CapabilityFunc(func(context.Context, job.Job) (job.Result, error) {
		calls.Add(1)
		return nil, errors.New("connection reset by peer")
	})))

	id, err := e.SubmitJob(context.Background(), Submission{Kind: job.KindURL, Platform: "web", Target: "https://down.test", MaxRetries: retries(2)})
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))
	waitTerminal(t, e, id)

	j, err := e.GetJob(id)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, j.Status)
	assert.Equal(t, 2, j.RetryCount)
	assert.Equal(t, "connection reset by peer", j.Error)
	assert.Nil(t, j.Result)
	assert.Equal(t, int32(3), calls.Load())
}

func TestBulkJobWithOneFailingTarget(t *testing.T) {
	e := newTestEngine(t, nil)
	require.NoError(t, e.RegisterCapability("web", CapabilityFunc(func(_ context.Context, j job.Job) (job.Result, error) {
		if j.Target == "t3" {
			return nil, errors.New("profile is private")
		}
		return job.Result{"handle": j.Target}, nil
	})))

	ctx := context.Background()
	bulkID, err := e.SubmitBulkJob(ctx, BulkSubmission{
		Name:       "five",
		Kind:       job.KindProfile,
		Platform:   "web",
		Targets:    []string{"t1", "t2", "t3", "t4", "t5"},
		MaxRetries: retries(1),
	})
	require.NoError(t, err)

	b, err := e.GetBulkJob(bulkID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusRunning, b.Status)
	assert.Equal(t, 5, b.Total)
	assert.Len(t, b.MemberIDs, 5)

	require.NoError(t, e.Start(ctx))
	waitTerminal(t, e, b.MemberIDs...)

	rows, err := e.BulkJobResults(bulkID)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	failed := 0
	for i, r := range rows {
		assert.Equal(t, fmt.Sprintf("t%d", i+1), r.Target)
		if r.Status == job.StatusFailed {
			failed++
			assert.Equal(t, "t3", r.Target)
			assert.Equal(t, "profile is private", r.Error)
			assert.Nil(t, r.Result)
		} else {
			assert.Equal(t, job.StatusCompleted, r.Status)
			assert.Equal(t, r.Target, r.Result["handle"])
		}
	}
	assert.Equal(t, 1, failed)

	b, err = e.GetBulkJob(bulkID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, b.Status)
	assert.Equal(t, 4, b.Completed)
	assert.Equal(t, 1, b.Failed)
	assert.Equal(t, 100.0, b.Progress())
	require.NotNil(t, b.CompletedAt)

	stamped := *b.CompletedAt
	again, err := e.GetBulkJob(bulkID)
	require.NoError(t, err)
	assert.Equal(t, stamped, *again.CompletedAt)
}

func TestUnknownPlatformFailsWithoutRetry(t *testing.T) {
	e := newTestEngine(t, nil)
	id, err := e.SubmitJob(context.Background(), Submission{Kind: job.KindProfile, Platform: "myspace", Target: "tom"})
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))
	waitTerminal(t, e, id)

	j, err := e.GetJob(id)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, j.Status)
	assert.Equal(t, 0, j.RetryCount)
	assert.Contains(t, j.Error, "unknown platform")
}

type urlOnly struct{ calls atomic.Int32 }

func (u *urlOnly) Supports(k job.Kind) bool { return k == job.KindURL }
func (u *urlOnly) Execute(context.Context, job.Job) (job.Result, error) {
	u.calls.Add(1)
	return job.Result{}, nil
}

func TestUnsupportedKindFailsWithoutCallingCapability(t *testing.T) {
	e := newTestEngine(t, nil)
	c := &urlOnly{}
	require.NoError(t, e.RegisterCapability("web", c))

	id, err := e.SubmitJob(context.Background(), Submission{Kind: job.KindPosts, Platform: "web", Target: "alice"})
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))
	waitTerminal(t, e, id)

	j, _ := e.GetJob(id)
	assert.Equal(t, job.StatusFailed, j.Status)
	assert.Equal(t, 0, j.RetryCount)
	assert.Contains(t, j.Error, "unsupported job kind")
	assert.Zero(t, c.calls.Load())
}

func TestPermanentErrorSkipsRetries(t *testing.T) {
	e := newTestEngine(t, nil)
	require.NoError(t, e.RegisterCapability("web", CapabilityFunc(func(context.Context, job.Job) (job.Result, error) {
		return nil, job.Permanent(errors.New("HTTP 404"))
	})))
	id, err := e.SubmitJob(context.Background(), Submission{Kind: job.KindURL, Platform: "web", Target: "https://gone.test"})
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))
	waitTerminal(t, e, id)

	j, _ := e.GetJob(id)
	assert.Equal(t, job.StatusFailed, j.Status)
	assert.Equal(t, 0, j.RetryCount)
}

func TestSubmissionValidation(t *testing.T) {
	e := newTestEngine(t, func(c *Config) { c.MaxBulkTargets = 2 })
	ctx := context.Background()

	tests := []struct {
		name string
		sub  Submission
		want error
	}{
		{"bad kind", Submission{Kind: "video", Platform: "web", Target: "x"}, ErrInvalidSubmission},
		{"no platform", Submission{Kind: job.KindURL, Platform: "  ", Target: "x"}, ErrInvalidSubmission},
		{"no target", Submission{Kind: job.KindURL, Platform: "web", Target: " "}, ErrInvalidSubmission},
		{"negative priority", Submission{Kind: job.KindURL, Platform: "web", Target: "x", Priority: -1}, ErrInvalidSubmission},
		{"negative retries", Submission{Kind: job.KindURL, Platform: "web", Target: "x", MaxRetries: retries(-1)}, ErrInvalidSubmission},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.SubmitJob(ctx, tt.sub)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := e.SubmitJob(ctx, Submission{ID: "fixed", Kind: job.KindURL, Platform: "web", Target: "x"})
	require.NoError(t, err)
	_, err = e.SubmitJob(ctx, Submission{ID: "fixed", Kind: job.KindURL, Platform: "web", Target: "y"})
	assert.ErrorIs(t, err, ErrDuplicateJob)

	_, err = e.SubmitBulkJob(ctx, BulkSubmission{Kind: job.KindURL, Platform: "web", Targets: []string{"a", "b", "c"}})
	assert.ErrorIs(t, err, ErrTooManyTargets)

	_, err = e.SubmitBulkJob(ctx, BulkSubmission{Kind: job.KindURL, Platform: "web", Targets: []string{" ", ""}})
	assert.ErrorIs(t, err, ErrInvalidSubmission)

	id, err := e.SubmitBulkJob(ctx, BulkSubmission{Kind: job.KindURL, Platform: "web", Targets: []string{"a", " ", "b"}})
	require.NoError(t, err)
	b, _ := e.GetBulkJob(id)
	assert.Equal(t, 2, b.Total)
	assert.Equal(t, "web url x2", b.Name)

	_, err = e.SubmitJob(ctx, Submission{Kind: job.KindURL, Platform: "web", Target: "x", MaxRetries: retries(0)})
	assert.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.SubmitJob(cancelled, Submission{Kind: job.KindURL, Platform: "web", Target: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNotFound(t *testing.T) {
	e := newTestEngine(t, nil)
	_, err := e.GetJob("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = e.GetBulkJob("nope")
	assert.ErrorIs(t, err, ErrBulkJobNotFound)
	_, err = e.BulkJobResults("nope")
	assert.ErrorIs(t, err, ErrBulkJobNotFound)
	assert.ErrorIs(t, e.ExportJSON("nope", &bytes.Buffer{}), ErrJobNotFound)
}

func TestLifecycle(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	assert.ErrorIs(t, e.Stop(), ErrNotStarted)
	require.NoError(t, e.Start(ctx))
	assert.True(t, e.Running())
	assert.ErrorIs(t, e.Start(ctx), ErrAlreadyStarted)
	require.NoError(t, e.Stop())
	assert.False(t, e.Running())
	assert.ErrorIs(t, e.Stop(), ErrNotStarted)
	assert.ErrorIs(t, e.Start(ctx), ErrStopped)
}

func TestStopLeavesQueuedJobs(t *testing.T) {
	e := newTestEngine(t, func(c *Config) { c.Workers = 1 })
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	require.NoError(t, e.RegisterCapability("web", CapabilityFunc(func(ctx context.Context, _ job.Job) (job.Result, error) {
		started <- struct{}{}
		select {
		case <-release:
			return job.Result{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})))

	ctx := context.Background()
	first, err := e.SubmitJob(ctx, Submission{Kind: job.KindURL, Platform: "web", Target: "one", Priority: job.PriorityUrgent})
	require.NoError(t, err)
	second, err := e.SubmitJob(ctx, Submission{Kind: job.KindURL, Platform: "web", Target: "two"})
	require.NoError(t, err)

	require.NoError(t, e.Start(ctx))
	<-started
	require.NoError(t, e.Stop())
	close(release)

	j, _ := e.GetJob(first)
	assert.Equal(t, job.StatusRunning, j.Status)
	j, _ = e.GetJob(second)
	assert.Equal(t, job.StatusPending, j.Status)
	assert.Equal(t, 1, e.QueueSize())
}

func TestStats(t *testing.T) {
	e := newTestEngine(t, func(c *Config) { c.Workers = 3 })
	require.NoError(t, e.RegisterCapability("web", CapabilityFunc(func(_ context.Context, j job.Job) (job.Result, error) {
		if j.Target == "bad" {
			return nil, job.Permanent(errors.New("nope"))
		}
		return job.Result{}, nil
	})))
	_, err := e.Proxies().Add("http://10.0.0.1:8080")
	require.NoError(t, err)

	ctx := context.Background()
	bulkID, err := e.SubmitBulkJob(ctx, BulkSubmission{Kind: job.KindURL, Platform: "web", Targets: []string{"ok", "bad"}})
	require.NoError(t, err)
	_, err = e.SubmitJob(ctx, Submission{Kind: job.KindURL, Platform: "web", Target: "ok2"})
	require.NoError(t, err)

	st := e.Stats()
	assert.Equal(t, 3, st.TotalJobs)
	assert.Equal(t, 3, st.Pending)
	assert.Equal(t, 3, st.QueueSize)
	assert.Equal(t, 1, st.BulkJobs)
	assert.Equal(t, 1, st.ActiveBulkJobs)
	assert.Equal(t, 3, st.Workers)
	assert.Equal(t, 5, st.MaxConcurrentBulkJobs)
	assert.Equal(t, 1, st.ProxiesTotal)

	require.NoError(t, e.Start(ctx))
	b, _ := e.GetBulkJob(bulkID)
	waitTerminal(t, e, b.MemberIDs...)
	require.Eventually(t, func() bool { return e.Stats().Pending == 0 && e.Stats().Running == 0 }, 2*time.Second, 5*time.Millisecond)

	st = e.Stats()
	assert.Equal(t, 2, st.Completed)
	assert.Equal(t, 1, st.Failed)
	assert.Equal(t, 0, st.ActiveBulkJobs)
	assert.Equal(t, 0, st.QueueSize)
}

func TestExports(t *testing.T) {
	e := newTestEngine(t, nil)
	require.NoError(t, e.RegisterCapability("web", CapabilityFunc(func(_ context.Context, j job.Job) (job.Result, error) {
		if j.Target == "carol" {
			return nil, job.Permanent(errors.New("suspended"))
		}
		return job.Result{"posts": []any{map[string]any{"id": j.Target + "-1"}, map[string]any{"id": j.Target + "-2"}}}, nil
	})))

	ctx := context.Background()
	bulkID, err := e.SubmitBulkJob(ctx, BulkSubmission{Kind: job.KindPosts, Platform: "web", Targets: []string{"alice", "carol"}})
	require.NoError(t, err)
	require.NoError(t, e.Start(ctx))
	b, _ := e.GetBulkJob(bulkID)
	waitTerminal(t, e, b.MemberIDs...)

	var js bytes.Buffer
	require.NoError(t, e.ExportJSON(bulkID, &js))
	var doc struct {
		JobID        string          `json:"job_id"`
		TotalResults int             `json:"total_results"`
		Data         []job.ResultRow `json:"data"`
	}
	require.NoError(t, json.Unmarshal(js.Bytes(), &doc))
	assert.Equal(t, bulkID, doc.JobID)
	assert.Equal(t, 2, doc.TotalResults)
	assert.Equal(t, "alice", doc.Data[0].Target)

	var cs bytes.Buffer
	require.NoError(t, e.ExportCSV(bulkID, &cs))
	recs, err := csv.NewReader(&cs).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"target", "status", "error", "id"},
		{"alice", "completed", "", "alice-1"},
		{"alice", "completed", "", "alice-2"},
		{"carol", "failed", "suspended", ""},
	}, recs)

	var single bytes.Buffer
	require.NoError(t, e.ExportJSON(b.MemberIDs[0], &single))
	assert.Contains(t, single.String(), `"total_results": 1`)
}

type recordingSink struct {
	mu    sync.Mutex
	jobs  map[string]job.Job
	bulks map[string]job.BulkJob
}

func newRecordingSink() *recordingSink {
	return &recordingSink{jobs: map[string]job.Job{}, bulks: map[string]job.BulkJob{}}
}

func (s *recordingSink) StoreJob(_ context.Context, j job.Job) error {
	s.mu.Lock()
	s.jobs[j.ID] = j
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) StoreBulk(_ context.Context, b job.BulkJob) error {
	s.mu.Lock()
	s.bulks[b.ID] = b
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) bulk(id string) job.BulkJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bulks[id]
}

func TestSinkSeesFinalSnapshots(t *testing.T) {
	sink := newRecordingSink()
	e := newTestEngine(t, nil, WithSink(sink))
	require.NoError(t, e.RegisterCapability("web", CapabilityFunc(echo)))

	ctx := context.Background()
	bulkID, err := e.SubmitBulkJob(ctx, BulkSubmission{Kind: job.KindURL, Platform: "web", Targets: []string{"https://a.test", "https://b.test"}})
	require.NoError(t, err)
	e.Flush()
	assert.Equal(t, job.StatusRunning, sink.bulk(bulkID).Status)

	require.NoError(t, e.Start(ctx))
	require.Eventually(t, func() bool { return sink.bulk(bulkID).Status == job.StatusCompleted }, 3*time.Second, 5*time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.jobs, 2)
	for _, j := range sink.jobs {
		assert.Equal(t, job.StatusCompleted, j.Status)
	}
	assert.Equal(t, 2, sink.bulks[bulkID].Completed)
}

// stallingSink blocks every write until released.
type stallingSink struct {
	*recordingSink
	release chan struct{}
	once    sync.Once
}

func (s *stallingSink) StoreJob(ctx context.Context, j job.Job) error {
	<-s.release
	return s.recordingSink.StoreJob(ctx, j)
}

func (s *stallingSink) StoreBulk(ctx context.Context, b job.BulkJob) error {
	<-s.release
	return s.recordingSink.StoreBulk(ctx, b)
}

func (s *stallingSink) unblock() { s.once.Do(func() { close(s.release) }) }

func TestSlowSinkDoesNotHoldWorkers(t *testing.T) {
	sink := &stallingSink{recordingSink: newRecordingSink(), release: make(chan struct{})}
	e := newTestEngine(t, func(c *Config) { c.Workers = 4 }, WithSink(sink))
	t.Cleanup(sink.unblock)
	require.NoError(t, e.RegisterCapability("web", CapabilityFunc(echo)))

	ctx := context.Background()
	var ids []string
	for i := 0; i < 8; i++ {
		id, err := e.SubmitJob(ctx, Submission{Kind: job.KindURL, Platform: "web", Target: fmt.Sprintf("https://s%d.test", i)})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, e.Start(ctx))
	waitTerminal(t, e, ids...)

	sink.mu.Lock()
	assert.Empty(t, sink.jobs)
	sink.mu.Unlock()

	sink.unblock()
	e.Flush()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.jobs, len(ids))
	for _, id := range ids {
		assert.Equal(t, job.StatusCompleted, sink.jobs[id].Status)
	}
}

func TestMirrorSink(t *testing.T) {
	mr := miniredis.RunT(t)
	svc, err := rds.New(rds.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	mirror := job.NewMirror(svc)

	e := newTestEngine(t, nil, WithSink(mirror))
	require.NoError(t, e.RegisterCapability("web", CapabilityFunc(echo)))

	ctx := context.Background()
	id, err := e.SubmitJob(ctx, Submission{Kind: job.KindURL, Platform: "web", Target: "https://m.test"})
	require.NoError(t, err)
	require.NoError(t, e.Start(ctx))
	waitTerminal(t, e, id)

	require.Eventually(t, func() bool {
		j, err := mirror.GetJob(ctx, id)
		return err == nil && j.Status == job.StatusCompleted
	}, 2*time.Second, 5*time.Millisecond)
}

type countingProber struct{ calls atomic.Int32 }

func (c *countingProber) Probe(context.Context, *proxy.Proxy) (time.Duration, error) {
	c.calls.Add(1)
	return 20 * time.Millisecond, nil
}

func TestHealthLoopFollowsLifecycle(t *testing.T) {
	prober := &countingProber{}
	e := newTestEngine(t, func(c *Config) { c.HealthCheckInterval = time.Hour }, WithProber(prober))
	_, err := e.Proxies().Add("http://10.0.0.9:3128")
	require.NoError(t, err)

	require.NoError(t, e.Start(context.Background()))
	require.Eventually(t, func() bool { return prober.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, e.Stop())

	after := prober.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, prober.calls.Load())
}

func TestHealthLoopCoversProxiesAddedAfterStart(t *testing.T) {
	prober := &countingProber{}
	e := newTestEngine(t, func(c *Config) { c.HealthCheckInterval = 10 * time.Millisecond }, WithProber(prober))
	require.NoError(t, e.Start(context.Background()))

	p, err := e.Proxies().Add("http://10.0.0.7:3128")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return prober.calls.Load() > 0 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !e.Proxies().State(p).LastChecked.IsZero() }, time.Second, 5*time.Millisecond)
}

func TestRegisterCapabilityRejectsEmpty(t *testing.T) {
	e := newTestEngine(t, nil)
	assert.ErrorIs(t, e.RegisterCapability(" ", CapabilityFunc(echo)), ErrInvalidCapability)
	assert.ErrorIs(t, e.RegisterCapability("web", nil), ErrInvalidCapability)
	require.NoError(t, e.RegisterCapability("B", CapabilityFunc(echo)))
	require.NoError(t, e.RegisterCapability("a", CapabilityFunc(echo)))
	assert.Equal(t, []string{"a", "b"}, e.Platforms())
}
