package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"harvester/internal/core/proxy"
	"harvester/internal/logger"

	"github.com/playwright-community/playwright-go"
)

// browserFetcher renders pages in headless Chromium for targets that need
// JavaScript. The driver starts on first use and is shared.
type browserFetcher struct {
	log       *logger.Logger
	userAgent string
	timeout   time.Duration

	mu sync.Mutex
	pw *playwright.Playwright
}

func (b *browserFetcher) driver() (*playwright.Playwright, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pw != nil {
		return b.pw, nil
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("playwright run: %w", err)
	}
	b.pw = pw
	return pw, nil
}

func (b *browserFetcher) Fetch(ctx context.Context, target string, via *proxy.Proxy) (*page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := b.driver()
	if err != nil {
		return nil, err
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-blink-features=AutomationControlled",
		},
	}
	if via != nil {
		opts.Proxy = browserProxy(via)
	}
	browser, err := pw.Chromium.Launch(opts)
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	defer browser.Close()

	headers := randomProfile().headers(b.userAgent)
	ua := headers["User-Agent"]
	delete(headers, "User-Agent")
	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:        playwright.String(ua),
		ExtraHttpHeaders: headers,
	})
	if err != nil {
		return nil, err
	}
	defer bctx.Close()

	pg, err := bctx.NewPage()
	if err != nil {
		return nil, err
	}

	timeoutMs := float64(b.timeout / time.Millisecond)
	start := time.Now()
	resp, err := pg.Goto(target, playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateDomcontentloaded, Timeout: playwright.Float(timeoutMs)})
	if err != nil {
		return nil, fmt.Errorf("goto %s: %w", target, err)
	}
	// Give client-side rendering a moment; a page that never idles is still usable.
	if err := pg.WaitForLoadState(playwright.PageWaitForLoadStateOptions{State: playwright.LoadStateNetworkidle, Timeout: playwright.Float(5000)}); err != nil {
		b.log.LogDebugf("Network never idled for %s: %v", target, err)
	}
	html, err := pg.Content()
	if err != nil {
		return nil, err
	}

	out := &page{Body: []byte(html), StatusCode: http.StatusOK, Header: http.Header{}, Elapsed: time.Since(start), Rendered: true}
	out.URL, _ = url.Parse(pg.URL())
	if resp != nil {
		out.StatusCode = resp.Status()
		for k, v := range resp.Headers() {
			out.Header.Set(k, v)
		}
	}
	return out, statusError(out)
}

func (b *browserFetcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pw == nil {
		return nil
	}
	err := b.pw.Stop()
	b.pw = nil
	return err
}

func browserProxy(p *proxy.Proxy) *playwright.Proxy {
	out := &playwright.Proxy{Server: p.Address()}
	if u := p.URL().User; u != nil {
		out.Username = playwright.String(u.Username())
		if pass, ok := u.Password(); ok {
			out.Password = playwright.String(pass)
		}
	}
	return out
}
