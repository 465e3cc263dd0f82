package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"harvester/internal/core/job"
	"harvester/internal/core/proxy"
	"harvester/internal/core/ratelimit"

	"github.com/gocolly/colly"
)

// page is one fetched document.
type page struct {
	URL        *url.URL
	StatusCode int
	Header     http.Header
	Body       []byte
	Elapsed    time.Duration
	Rendered   bool
}

// Fetcher retrieves a URL, optionally through a proxy.
type Fetcher interface {
	Fetch(ctx context.Context, target string, via *proxy.Proxy) (*page, error)
}

// collyFetcher issues a single GET with a fresh collector per request so the
// proxy and headers never leak between jobs.
type collyFetcher struct {
	userAgent string
	timeout   time.Duration
	maxBody   int
}

func (f *collyFetcher) Fetch(ctx context.Context, target string, via *proxy.Proxy) (*page, error) {
	c := colly.NewCollector(colly.AllowURLRevisit(), colly.MaxBodySize(f.maxBody))
	c.SetRequestTimeout(f.timeout)
	if via != nil {
		if err := c.SetProxy(via.URL().String()); err != nil {
			return nil, fmt.Errorf("set proxy %s: %w", via, err)
		}
	}

	headers := randomProfile().headers(f.userAgent)
	c.OnRequest(func(r *colly.Request) {
		for k, v := range headers {
			r.Headers.Set(k, v)
		}
	})

	var got *page
	var failure error
	start := time.Now()
	capture := func(r *colly.Response) {
		got = &page{URL: r.Request.URL, StatusCode: r.StatusCode, Body: r.Body, Elapsed: time.Since(start)}
		if r.Headers != nil {
			got.Header = *r.Headers
		}
	}
	c.OnResponse(capture)
	c.OnError(func(r *colly.Response, err error) {
		failure = err
		if r != nil && r.StatusCode > 0 {
			capture(r)
		}
	})

	done := make(chan error, 1)
	go func() { done <- c.Visit(target) }()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-done:
		if got != nil {
			return got, statusError(got)
		}
		if err == nil {
			err = failure
		}
		if err == nil {
			err = errors.New("empty response")
		}
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
}

// statusError classifies an HTTP status. 429 is a rate limit, other client
// errors are permanent, server errors are retryable.
func statusError(p *page) error {
	switch {
	case p.StatusCode == http.StatusTooManyRequests:
		return &ratelimit.RateLimitError{
			StatusCode: p.StatusCode,
			RetryAfter: ratelimit.ParseRetryAfter(p.Header.Get("Retry-After"), time.Now()),
		}
	case p.StatusCode >= 400 && p.StatusCode < 500:
		return job.Permanent(fmt.Errorf("origin returned HTTP %d", p.StatusCode))
	case p.StatusCode >= 500:
		return fmt.Errorf("origin returned HTTP %d", p.StatusCode)
	}
	return nil
}
