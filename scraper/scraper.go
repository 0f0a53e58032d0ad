// Package scraper implements the plots-and-lands crawl: category
// discovery, listing pagination, link aggregation, and ad extraction.
package scraper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zemeslab/sslv-plots/config"
	"github.com/zemeslab/sslv-plots/models"
	"github.com/zemeslab/sslv-plots/pipeline"
)

// Scraper wires the crawl stages over one shared client and streams the
// resulting records through a pipeline.
type Scraper struct {
	cfg        *config.Config
	client     *Client
	norm       *Normalizer
	discoverer *Discoverer
	paginator  *Paginator
	extractor  *Extractor
	Metrics    *Metrics
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	metrics := NewMetrics()

	client, err := NewClient(cfg, metrics)
	if err != nil {
		return nil, err
	}
	norm, err := NewNormalizer(cfg)
	if err != nil {
		return nil, err
	}

	return &Scraper{
		cfg:        cfg,
		client:     client,
		norm:       norm,
		discoverer: NewDiscoverer(client, norm, metrics, cfg.MaxDepth),
		paginator:  NewPaginator(client, norm, metrics, cfg.MaxPages),
		extractor:  NewExtractor(client, metrics),
		Metrics:    metrics,
	}, nil
}

// Run executes the full crawl and streams records through the pipeline.
//
// Every stage tolerates per-node failures, so Run itself only reports the
// run summary; it does not fail when parts of the site were unreachable.
// Cancellation is cooperative: in-flight requests finish, no new request
// starts once ctx is done, and records already produced stay valid.
func (s *Scraper) Run(ctx context.Context, p *pipeline.Pipeline) (*models.CrawlResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	disc := s.discoverer.Discover(ctx, s.cfg.RootURL())

	sellURLs := BuildSellURLs(s.norm, disc.Nodes, s.cfg.IncludeAggregate)
	slog.Info("listing crawl starting", slog.Int("listings", len(sellURLs)))

	// Categories share no state, so they paginate concurrently; the
	// per-index result slots plus the sorted sell URL order make the
	// merged sequence independent of worker scheduling.
	perCategory := make([][]string, len(sellURLs))
	s.runPool(func(i int) {
		perCategory[i] = s.paginator.CollectLinks(ctx, sellURLs[i])
	}, len(sellURLs))

	agg := NewAggregator()
	for i, links := range perCategory {
		added := agg.AddAll(links)
		slog.Debug("listing aggregated",
			slog.String("url", sellURLs[i]),
			slog.Int("links", len(links)),
			slog.Int("new", added),
		)
	}
	links := agg.Links()
	s.Metrics.AddLinks(len(links))
	slog.Info("ad extraction starting", slog.Int("ads", len(links)))

	records := make([]*models.AdRecord, len(links))
	var attempted int64
	s.runPool(func(i int) {
		if ctx.Err() != nil {
			return
		}
		rec, err := s.extractor.Extract(ctx, links[i])
		done := atomic.AddInt64(&attempted, 1)
		if err != nil {
			slog.Warn("ad extraction failed",
				slog.Int("position", i+1),
				slog.Int("total", len(links)),
				slog.String("url", links[i]),
				slog.Any("error", err),
			)
			return
		}
		records[i] = rec
		if done%50 == 0 {
			slog.Debug("extraction progress",
				slog.Int64("done", done),
				slog.Int("total", len(links)),
			)
		}
	}, len(links))

	produced := 0
	for _, rec := range records {
		if rec == nil {
			continue
		}
		if err := p.Process(rec); err != nil {
			if !errors.Is(err, pipeline.ErrPipelineClosed) {
				slog.Error("pipeline process error", slog.Any("error", err))
			}
			continue
		}
		produced++
	}

	return &models.CrawlResult{
		StartTime:        start,
		EndTime:          time.Now(),
		CategoryCount:    len(disc.Nodes),
		SellURLCount:     len(sellURLs),
		ListingPageCount: s.paginator.pagesSeen(),
		LinkCount:        len(links),
		RecordCount:      produced,
		RequestCount:     s.client.requests(),
		ErrorCount:       s.client.errors(),
		RetryCount:       s.client.retries(),
		FailedURLs:       s.client.snapshotFailedURLs(),
		ErrorsByType:     s.client.snapshotErrorsByType(),
	}, nil
}

// runPool runs fn over indexes [0, n) with bounded concurrency.
func (s *Scraper) runPool(fn func(int), n int) {
	workers := s.cfg.Parallelism
	if workers <= 0 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	if n == 0 {
		return
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}
