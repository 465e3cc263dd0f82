package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"harvester/internal/core/job"
	"harvester/internal/core/proxy"
	"harvester/internal/core/ratelimit"
	"harvester/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!doctype html>
<html lang="en">
<head>
  <title>Harvest Notes</title>
  <meta name="description" content="Notes about harvesting">
  <meta property="og:image" content="https://cdn.test/cover.png">
  <link rel="canonical" href="/notes">
</head>
<body>
  <nav><a href="/home">Home</a></nav>
  <main>
    <h1>Hello</h1>
    <p>Crops are <strong>ready</strong>.</p>
    <div class="cookie-consent">We use cookies</div>
    <a href="/about">About us</a>
    <a href="https://elsewhere.test/x#frag">Elsewhere</a>
    <a href="mailto:hi@example.com">Mail</a>
  </main>
</body>
</html>`

func newService(t *testing.T, cfg Config, proxies *proxy.Pool, limiter *ratelimit.Limiter, opts ...Option) *Service {
	t.Helper()
	cfg.Logger = logger.Nop()
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return New(cfg, proxies, limiter, opts...)
}

func fastLimiter() *ratelimit.Limiter {
	return ratelimit.New(ratelimit.Config{BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Logger: logger.Nop()})
}

func urlJob(target string, params map[string]any) job.Job {
	return job.New("", job.KindURL, Platform, target, params, job.PriorityNormal, 0, time.Now()).Clone()
}

func TestScrapeURLExtractsPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, articleHTML)
	}))
	defer srv.Close()

	s := newService(t, Config{}, nil, nil)
	res, err := s.Execute(context.Background(), urlJob(srv.URL+"/page", nil))
	require.NoError(t, err)

	assert.Equal(t, "Harvest Notes", res["title"])
	assert.Equal(t, "Notes about harvesting", res["description"])
	assert.Equal(t, 200, res["status_code"])
	assert.Equal(t, srv.URL+"/notes", res["canonical"])
	assert.Equal(t, "en", res["lang"])
	assert.Equal(t, false, res["rendered"])

	content := res["content"].(string)
	assert.Contains(t, content, "# Hello")
	assert.Contains(t, content, "**ready**")
	assert.NotContains(t, content, "cookies")
	assert.NotContains(t, content, "Home")

	links := res["links"].([]any)
	assert.Contains(t, links, srv.URL+"/about")
	assert.Contains(t, links, srv.URL+"/home")
	assert.Contains(t, links, "https://elsewhere.test/x")
	assert.NotContains(t, links, "mailto:hi@example.com")
	assert.Equal(t, len(links), res["discovered"])

	meta := res["metadata"].(map[string]any)
	assert.Equal(t, "https://cdn.test/cover.png", meta["og:image"])
	assert.NotContains(t, res, "html")
}

func TestScrapeURLIncludeHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>raw</p></body></html>")
	}))
	defer srv.Close()

	s := newService(t, Config{}, nil, nil)
	res, err := s.Execute(context.Background(), urlJob(srv.URL, map[string]any{"include_html": true}))
	require.NoError(t, err)
	assert.Contains(t, res["html"], "<p>raw</p>")
}

func TestClientErrorIsPermanentAndNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	s := newService(t, Config{Attempts: 3}, nil, fastLimiter())
	_, err := s.Execute(context.Background(), urlJob(srv.URL+"/missing", nil))
	require.Error(t, err)
	assert.True(t, job.IsPermanent(err))
	assert.Contains(t, err.Error(), "HTTP 404")
	assert.Equal(t, int32(1), hits.Load())
}

func TestTooManyRequestsMarksDestination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	limiter := fastLimiter()
	s := newService(t, Config{Attempts: 1}, nil, limiter)
	j := urlJob(srv.URL, nil)
	_, err := s.Execute(context.Background(), j)
	require.Error(t, err)
	assert.True(t, ratelimit.IsRateLimited(err))
	assert.False(t, job.IsPermanent(err))

	var rle *ratelimit.RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, 120*time.Second, rle.RetryAfter)

	until, blocked := limiter.BlockedUntil(j.Destination())
	assert.True(t, blocked)
	assert.WithinDuration(t, time.Now().Add(120*time.Second), until, 5*time.Second)
}

func TestServerErrorIsRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "<html><head><title>Back</title></head><body></body></html>")
	}))
	defer srv.Close()

	s := newService(t, Config{Attempts: 2}, nil, fastLimiter())
	res, err := s.Execute(context.Background(), urlJob(srv.URL, nil))
	require.NoError(t, err)
	assert.Equal(t, "Back", res["title"])
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchGoesThroughProxy(t *testing.T) {
	var seen atomic.Value
	proxySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.URL.String())
		fmt.Fprint(w, "<html><head><title>via proxy</title></head><body></body></html>")
	}))
	defer proxySrv.Close()

	pool := proxy.NewPool(proxy.Config{Logger: logger.Nop()})
	p, err := pool.Add(proxySrv.URL)
	require.NoError(t, err)

	s := newService(t, Config{}, pool, nil)
	res, err := s.Execute(context.Background(), urlJob("http://origin.test/item", nil))
	require.NoError(t, err)

	assert.Equal(t, "via proxy", res["title"])
	assert.Equal(t, p.Address(), res["proxy"])
	assert.Equal(t, "http://origin.test/item", seen.Load())

	st := pool.State(p)
	assert.Equal(t, 1, st.Successes)
	assert.Equal(t, 1, st.RequestsThisMinute)
}

func TestExhaustedPoolIsRetryable(t *testing.T) {
	pool := proxy.NewPool(proxy.Config{Logger: logger.Nop()})
	p, err := pool.Add("http://10.1.1.1:3128")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		pool.ReportOutcome(p, false, 0)
	}

	s := newService(t, Config{Attempts: 1}, pool, nil)
	_, err = s.Execute(context.Background(), urlJob("https://a.test", nil))
	assert.ErrorIs(t, err, proxy.ErrNoProxyAvailable)
	assert.False(t, job.IsPermanent(err))
}

func TestSearchWithinSite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<a href="/blog/first-harvest">First harvest</a>
			<a href="/blog/winter">Winter</a>
			<a href="/shop">Shop</a>
			<a href="https://other.test/blog/harvest">Other</a>
		</body></html>`)
	}))
	defer srv.Close()

	s := newService(t, Config{}, nil, nil)
	j := job.New("", job.KindSearch, Platform, srv.URL, map[string]any{
		"patterns": []any{"/blog/*"},
		"query":    "harvest",
	}, job.PriorityNormal, 0, time.Now()).Clone()

	res, err := s.Execute(context.Background(), j)
	require.NoError(t, err)
	results := res["results"].([]any)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Equal(t, srv.URL+"/blog/first-harvest", first["url"])
	assert.Equal(t, "First harvest", first["title"])
	assert.Equal(t, 1, res["total"])
	assert.Equal(t, "harvest", res["query"])
}

func TestSearchQueryUsesSearchPage(t *testing.T) {
	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query().Get("q"))
		fmt.Fprintf(w, `<html><body>
			<a href="/settings">Settings</a>
			<a href="/l/?uddg=%s">Farm One</a>
			<a href="https://two.test/">Farm Two</a>
			<a href="https://three.test/">Farm Three</a>
		</body></html>`, url.QueryEscape("https://one.test/page"))
	}))
	defer srv.Close()

	s := newService(t, Config{SearchURL: srv.URL + "/search?q=%s"}, nil, nil)
	j := job.New("", job.KindSearch, Platform, "organic farms", map[string]any{"limit": float64(2)}, job.PriorityNormal, 0, time.Now()).Clone()

	res, err := s.Execute(context.Background(), j)
	require.NoError(t, err)
	assert.Equal(t, "organic farms", gotQuery.Load())

	results := res["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, "https://one.test/page", results[0].(map[string]any)["url"])
	assert.Equal(t, "https://two.test/", results[1].(map[string]any)["url"])
	assert.Equal(t, 2, results[1].(map[string]any)["rank"])
}

type stubFetcher struct{ calls atomic.Int32 }

func (f *stubFetcher) Fetch(_ context.Context, target string, _ *proxy.Proxy) (*page, error) {
	f.calls.Add(1)
	u, _ := url.Parse(target)
	return &page{URL: u, StatusCode: 200, Body: []byte("<html><head><title>rendered</title></head></html>"), Rendered: true}, nil
}

func TestRenderJSUsesRenderer(t *testing.T) {
	r := &stubFetcher{}
	s := newService(t, Config{}, nil, nil, WithRenderer(r))
	res, err := s.Execute(context.Background(), urlJob("https://spa.test", map[string]any{"render_js": true}))
	require.NoError(t, err)
	assert.Equal(t, "rendered", res["title"])
	assert.Equal(t, true, res["rendered"])
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestRenderJSWithoutBrowserIsPermanent(t *testing.T) {
	s := newService(t, Config{}, nil, nil)
	_, err := s.Execute(context.Background(), urlJob("https://spa.test", map[string]any{"render_js": "true"}))
	require.Error(t, err)
	assert.True(t, job.IsPermanent(err))
}

func TestUnsupportedKinds(t *testing.T) {
	s := newService(t, Config{}, nil, nil)
	assert.True(t, s.Supports(job.KindURL))
	assert.True(t, s.Supports(job.KindSearch))
	assert.False(t, s.Supports(job.KindPosts))

	j := job.New("", job.KindProfile, Platform, "alice", nil, job.PriorityNormal, 0, time.Now()).Clone()
	_, err := s.Execute(context.Background(), j)
	assert.ErrorIs(t, err, job.ErrUnsupportedKind)
}

func TestInvalidURLIsPermanent(t *testing.T) {
	s := newService(t, Config{}, nil, nil)
	_, err := s.Execute(context.Background(), urlJob("ftp://files.test/x", nil))
	require.Error(t, err)
	assert.True(t, job.IsPermanent(err))
}

func TestMatchesPattern(t *testing.T) {
	assert.True(t, matchesPattern("https://a.test/blog", []string{"/blog/*"}))
	assert.True(t, matchesPattern("https://a.test/blog/x/y", []string{"/blog/*"}))
	assert.False(t, matchesPattern("https://a.test/shop", []string{"/blog/*"}))
	assert.True(t, matchesPattern("https://a.test/", nil))
}

func TestDomainsMatch(t *testing.T) {
	assert.True(t, domainsMatch("www.a.test", "a.test", false))
	assert.False(t, domainsMatch("blog.a.test", "a.test", false))
	assert.True(t, domainsMatch("blog.a.test", "a.test", true))
}
