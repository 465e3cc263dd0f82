// Package scrape is the bundled capability for the generic "web" platform.
// It fetches pages through the proxy pool under the rate limiter and turns
// them into structured results.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"harvester/internal/core/job"
	"harvester/internal/core/proxy"
	"harvester/internal/core/ratelimit"
	"harvester/internal/logger"
)

const Platform = "web"

const (
	DefaultUserAgent   = "HarvesterBot/1.0"
	DefaultTimeout     = 30 * time.Second
	DefaultSearchURL   = "https://html.duckduckgo.com/html/?q=%s"
	DefaultSearchLimit = 20
	defaultAttempts    = 2
	defaultMaxBody     = 10 << 20
)

type Config struct {
	UserAgent string
	Timeout   time.Duration
	// Attempts is how many fetches one job execution may make before the
	// error goes back to the worker's retry policy.
	Attempts int
	// SearchURL is a format string taking the escaped query; used by search
	// jobs whose target is not a URL.
	SearchURL   string
	SearchLimit int
	// RenderJS enables the headless browser for jobs that ask for it.
	RenderJS bool
	Logger   *logger.Logger
}

type Service struct {
	cfg     Config
	log     *logger.Logger
	proxies *proxy.Pool
	limiter *ratelimit.Limiter

	fetcher  Fetcher
	renderer Fetcher
}

type Option func(*Service)

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f Fetcher) Option { return func(s *Service) { s.fetcher = f } }

// WithRenderer replaces the browser used for render_js jobs.
func WithRenderer(f Fetcher) Option { return func(s *Service) { s.renderer = f } }

// New builds the web capability. proxies and limiter may be nil.
func New(cfg Config, proxies *proxy.Pool, limiter *ratelimit.Limiter, opts ...Option) *Service {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultAttempts
	}
	if cfg.SearchURL == "" {
		cfg.SearchURL = DefaultSearchURL
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = DefaultSearchLimit
	}
	log := cfg.Logger
	if log == nil {
		log = logger.New("ScrapeService")
	}
	s := &Service{cfg: cfg, log: log, proxies: proxies, limiter: limiter}
	s.fetcher = &collyFetcher{userAgent: cfg.UserAgent, timeout: cfg.Timeout, maxBody: defaultMaxBody}
	if cfg.RenderJS {
		s.renderer = &browserFetcher{log: log, userAgent: cfg.UserAgent, timeout: cfg.Timeout}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the browser driver, if one was started.
func (s *Service) Close() error {
	if c, ok := s.renderer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func (s *Service) Supports(kind job.Kind) bool {
	return kind == job.KindURL || kind == job.KindSearch
}

func (s *Service) Execute(ctx context.Context, j job.Job) (job.Result, error) {
	switch j.Kind {
	case job.KindURL:
		return s.scrapeURL(ctx, j)
	case job.KindSearch:
		return s.search(ctx, j)
	}
	return nil, job.Permanent(fmt.Errorf("%w: %s on %s", job.ErrUnsupportedKind, j.Kind, Platform))
}

func (s *Service) scrapeURL(ctx context.Context, j job.Job) (job.Result, error) {
	target, err := normalizeURL(j.Target)
	if err != nil {
		return nil, job.Permanent(err)
	}

	pg, via, err := s.get(ctx, j, target)
	if err != nil {
		return nil, err
	}
	doc, err := parseHTML(pg.Body, pg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", target, err)
	}

	links := make([]any, 0, len(doc.Links))
	for _, l := range doc.Links {
		links = append(links, l.URL)
	}
	meta := make(map[string]any, len(doc.Meta))
	for k, v := range doc.Meta {
		meta[k] = v
	}

	res := job.Result{
		"url":         target,
		"final_url":   pg.URL.String(),
		"status_code": pg.StatusCode,
		"title":       doc.Title,
		"description": doc.Description,
		"content":     doc.Markdown,
		"links":       links,
		"discovered":  len(links),
		"metadata":    meta,
		"rendered":    pg.Rendered,
		"elapsed_ms":  pg.Elapsed.Milliseconds(),
	}
	if doc.Canonical != "" {
		res["canonical"] = doc.Canonical
	}
	if doc.Lang != "" {
		res["lang"] = doc.Lang
	}
	if via != nil {
		res["proxy"] = via.Address()
	}
	if boolParam(j.Parameters, "include_html") {
		res["html"] = string(pg.Body)
	}
	return res, nil
}

// search collects result links. A URL target is mapped for same-site links;
// anything else is sent to the configured search page as a query.
func (s *Service) search(ctx context.Context, j job.Job) (job.Result, error) {
	query := strings.TrimSpace(j.Target)
	filter := stringParam(j.Parameters, "query")
	if filter != "" {
		query = filter
	}

	source, siteMode := "", looksLikeURL(j.Target)
	if siteMode {
		u, err := normalizeURL(j.Target)
		if err != nil {
			return nil, job.Permanent(err)
		}
		source = u
	} else {
		source = fmt.Sprintf(s.cfg.SearchURL, url.QueryEscape(query))
	}

	pg, via, err := s.get(ctx, j, source)
	if err != nil {
		return nil, err
	}
	doc, err := parseHTML(pg.Body, pg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", source, err)
	}

	limit := intParam(j.Parameters, "limit", s.cfg.SearchLimit)
	patterns := stringsParam(j.Parameters, "patterns")
	subdomains := boolParam(j.Parameters, "include_subdomains")
	sourceHost := hostname(pg.URL.String())

	results := make([]any, 0, limit)
	for _, l := range doc.Links {
		if len(results) >= limit {
			break
		}
		if siteMode {
			if !domainsMatch(hostname(l.URL), sourceHost, subdomains) || !matchesPattern(l.URL, patterns) {
				continue
			}
			if filter != "" && !mentions(l, filter) {
				continue
			}
		} else {
			l.URL = unwrapRedirect(l.URL)
			if domainsMatch(hostname(l.URL), sourceHost, true) {
				continue
			}
		}
		results = append(results, map[string]any{"url": l.URL, "title": l.Text, "rank": len(results) + 1})
	}

	res := job.Result{
		"query":   query,
		"source":  source,
		"results": results,
		"total":   len(results),
	}
	if via != nil {
		res["proxy"] = via.Address()
	}
	return res, nil
}

// get fetches target under the limiter, leasing a proxy per attempt and
// reporting how it went.
func (s *Service) get(ctx context.Context, j job.Job, target string) (*page, *proxy.Proxy, error) {
	fetcher := s.fetcher
	if boolParam(j.Parameters, "render_js") {
		if s.renderer == nil {
			return nil, nil, job.Permanent(errors.New("render_js requested but browser rendering is disabled"))
		}
		fetcher = s.renderer
	}

	var pg *page
	var via *proxy.Proxy
	attempt := func(ctx context.Context) error {
		via = nil
		if s.proxies != nil && s.proxies.Len() > 0 {
			p, ok := s.proxies.GetNext()
			if !ok {
				return proxy.ErrNoProxyAvailable
			}
			via = p
		}

		start := time.Now()
		got, err := fetcher.Fetch(ctx, target, via)
		if via != nil {
			s.proxies.ReportOutcome(via, proxyOK(err), time.Since(start))
		}
		if err != nil {
			if job.IsPermanent(err) {
				return ratelimit.Abort(err)
			}
			return err
		}
		if got.URL == nil {
			got.URL, _ = url.Parse(target)
		}
		pg = got
		return nil
	}

	var err error
	if s.limiter != nil {
		err = s.limiter.ExecuteWithRetry(ctx, j.Destination(), s.cfg.Attempts, attempt)
	} else {
		err = attempt(ctx)
	}
	if err != nil {
		s.log.LogDebugf("Fetching %s for job %s failed: %v", target, j.ID, err)
		return nil, nil, err
	}
	return pg, via, nil
}

// proxyOK tells the pool whether the proxy did its job. A 4xx from the
// origin still means the proxy delivered the request.
func proxyOK(err error) bool {
	if err == nil {
		return true
	}
	return job.IsPermanent(err)
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid url %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

func looksLikeURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func domainsMatch(a, b string, includeSub bool) bool {
	a = strings.TrimPrefix(a, "www.")
	b = strings.TrimPrefix(b, "www.")
	if a == b {
		return true
	}
	return includeSub && (strings.HasSuffix(a, "."+b) || strings.HasSuffix(b, "."+a))
}

// matchesPattern accepts glob patterns against the URL path; "/blog/*" also
// matches "/blog" and anything under it.
func matchesPattern(raw string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	p := u.Path
	if p == "" {
		p = "/"
	}
	for _, pattern := range patterns {
		if ok, err := path.Match(pattern, p); err == nil && ok {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if p == strings.TrimSuffix(prefix, "/") || strings.HasPrefix(p, prefix) {
				return true
			}
		}
	}
	return false
}

// unwrapRedirect follows search engine click-tracking links such as
// "/l/?uddg=<escaped url>" to their destination.
func unwrapRedirect(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	for _, key := range []string{"uddg", "url", "q"} {
		if dest := u.Query().Get(key); looksLikeURL(dest) {
			return dest
		}
	}
	return raw
}

func mentions(l link, query string) bool {
	hay := strings.ToLower(l.URL + " " + l.Text)
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if !strings.Contains(hay, w) {
			return false
		}
	}
	return true
}
