// Package collyfetcher implements scrape.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/disclosure-scraper/internal/scrape"
)

const defaultTimeout = 60 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// Jar carries the session cookies. A nil jar disables cookie handling,
	// which is how the unauthenticated direct fetcher is built.
	Jar http.CookieJar
	// RequestsPerSecond paces requests; zero disables pacing.
	RequestsPerSecond float64
	// Transport overrides the pooled HTTP transport.
	Transport http.RoundTripper
}

// Fetcher implements scrape.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	limiter       *rate.Limiter
	baseCollector *colly.Collector
}

var _ scrape.Fetcher = (*Fetcher)(nil)

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. Each Fetcher owns its collector, so the cookie jar
// of an authenticated fetcher never leaks into an anonymous one.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	c.MaxBodySize = 0

	transport := cfg.Transport
	if transport == nil {
		transport = newHTTPTransport()
	}
	c.WithTransport(transport)
	if cfg.Jar != nil {
		c.SetCookieJar(cfg.Jar)
	} else {
		c.DisableCookies()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Fetcher{
		cfg:           cfg,
		limiter:       limiter,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET using Colly. Any status outside 2xx is
// returned as a *scrape.StatusError.
func (f *Fetcher) Fetch(ctx context.Context, request scrape.FetchRequest) (scrape.FetchResponse, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return scrape.FetchResponse{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	var (
		result   scrape.FetchResponse
		fetchErr error
	)
	collector := f.buildCollector(ctx, request, time.Now(), &result, &fetchErr)
	if err := f.runCollector(ctx, collector, request.URL, &fetchErr); err != nil {
		return scrape.FetchResponse{}, err
	}
	return result, nil
}

func (f *Fetcher) buildCollector(
	ctx context.Context,
	request scrape.FetchRequest,
	start time.Time,
	result *scrape.FetchResponse,
	fetchErr *error,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	collector.MaxBodySize = 0
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)
	f.configureCollectorHooks(collector, request, start, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request scrape.FetchRequest,
	start time.Time,
	result *scrape.FetchResponse,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		copyHeaders(request, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = scrape.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			statusErr := &scrape.StatusError{URL: request.URL, StatusCode: r.StatusCode, Bytes: len(r.Body)}
			if r.Headers != nil {
				statusErr.ContentType = r.Headers.Get("Content-Type")
			}
			*fetchErr = statusErr
			return
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func copyHeaders(request scrape.FetchRequest, r *colly.Request) {
	for key, values := range request.Headers {
		r.Headers.Del(key)
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
