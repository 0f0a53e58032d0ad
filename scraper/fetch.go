package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/zemeslab/sslv-plots/config"
)

const fetchResultKey = "fetchResult"

// Page is the outcome of a successful fetch. FinalURL is the URL the
// request resolved to after redirects; callers compare it against the
// requested URL to detect being bounced back to an earlier page.
type Page struct {
	Body       []byte
	FinalURL   string
	StatusCode int
}

type fetchResult struct {
	received bool
	body     []byte
	finalURL string
	status   int
}

// Client is the shared retrying, rate-limited HTTP client. All crawl
// stages go through it, so the collector's limit rule is the single
// politeness budget for the whole run.
type Client struct {
	cfg       *config.Config
	collector *colly.Collector
	metrics   *Metrics

	requestCount int64
	errorCount   int64
	retryCount   int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int
}

// NewClient builds a client configured from cfg.
func NewClient(cfg *config.Config, metrics *Metrics) (*Client, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	c := &Client{
		cfg:          cfg,
		collector:    collector,
		metrics:      metrics,
		errorsByType: make(map[string]int),
	}

	collector.OnRequest(func(r *colly.Request) {
		if cfg.AcceptLanguage != "" {
			r.Headers.Set("Accept-Language", cfg.AcceptLanguage)
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		res, ok := r.Ctx.GetAny(fetchResultKey).(*fetchResult)
		if !ok {
			return
		}
		res.received = true
		res.body = r.Body
		res.finalURL = r.Request.URL.String()
		res.status = r.StatusCode
	})

	collector.OnError(func(r *colly.Response, err error) {
		res, ok := r.Ctx.GetAny(fetchResultKey).(*fetchResult)
		if !ok {
			return
		}
		res.status = r.StatusCode
	})

	return c, nil
}

// WithTransport swaps the underlying transport. Used by tests.
func (c *Client) WithTransport(transport http.RoundTripper) {
	c.collector.WithTransport(transport)
}

// Fetch issues a GET for rawURL and returns the body together with the
// final resolved URL. Transient failures (429, 5xx, timeouts, connection
// errors) are retried with capped exponential backoff up to the configured
// budget; anything else fails immediately with a *FetchError.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	attempts := c.cfg.MaxRetries + 1
	var lastErr error
	var lastStatus int
	tried := 0

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				return nil, err
			}
			break
		}

		res := &fetchResult{}
		cctx := colly.NewContext()
		cctx.Put(fetchResultKey, res)

		atomic.AddInt64(&c.requestCount, 1)
		c.metrics.IncRequest("started")
		tried++

		start := time.Now()
		err := c.collector.Request(http.MethodGet, rawURL, nil, cctx, nil)
		c.metrics.ObserveDuration(time.Since(start))

		if err == nil && res.received {
			return &Page{
				Body:       res.body,
				FinalURL:   res.finalURL,
				StatusCode: res.status,
			}, nil
		}
		if err == nil {
			err = fmt.Errorf("no response for %s", rawURL)
		}

		classified := classifyError(err, res.status)
		label := errorTypeLabel(classified)
		atomic.AddInt64(&c.errorCount, 1)
		c.metrics.IncError(label)
		c.mu.Lock()
		c.errorsByType[label]++
		c.mu.Unlock()

		lastErr = classified
		lastStatus = res.status

		if attempt == attempts || !retryable(classified, res.status) {
			break
		}

		atomic.AddInt64(&c.retryCount, 1)
		c.metrics.IncRetries()
		delay := c.backoff(attempt)
		slog.Debug("retrying fetch",
			slog.String("url", rawURL),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			slog.String("category", label),
		)
		if err := sleepCtx(ctx, delay); err != nil {
			break
		}
	}

	c.mu.Lock()
	c.failedURLs = append(c.failedURLs, rawURL)
	c.mu.Unlock()

	return nil, &FetchError{URL: rawURL, Status: lastStatus, Attempts: tried, Err: lastErr}
}

func (c *Client) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := c.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := c.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (c *Client) requests() int {
	return int(atomic.LoadInt64(&c.requestCount))
}

func (c *Client) errors() int {
	return int(atomic.LoadInt64(&c.errorCount))
}

func (c *Client) retries() int {
	return int(atomic.LoadInt64(&c.retryCount))
}

func (c *Client) snapshotFailedURLs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.failedURLs))
	copy(out, c.failedURLs)
	return out
}

func (c *Client) snapshotErrorsByType() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.errorsByType))
	for k, v := range c.errorsByType {
		out[k] = v
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
