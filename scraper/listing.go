package scraper

import (
	"bytes"
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
)

// Paginator walks the sequential listing pages of one category and
// collects the advertisement links they expose.
type Paginator struct {
	client   *Client
	norm     *Normalizer
	metrics  *Metrics
	maxPages int

	pages int64
}

// NewPaginator builds a paginator over the shared client. maxPages is a
// fail-safe against redirect loops, not the expected page count.
func NewPaginator(client *Client, norm *Normalizer, metrics *Metrics, maxPages int) *Paginator {
	return &Paginator{
		client:   client,
		norm:     norm,
		metrics:  metrics,
		maxPages: maxPages,
	}
}

// BuildSellURLs derives the listing endpoints for a set of canonical
// category nodes, optionally including the root-level aggregate listing.
// The result is sorted so downstream processing order does not depend on
// discovery or scheduling order.
func BuildSellURLs(norm *Normalizer, nodes []string, includeAggregate bool) []string {
	set := make(map[string]struct{}, len(nodes)+1)
	for _, node := range nodes {
		set[norm.SellURL(node)] = struct{}{}
	}
	if includeAggregate {
		set[norm.SellURL(norm.Root())] = struct{}{}
	}

	urls := make([]string, 0, len(set))
	for u := range set {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// CollectLinks walks a category's listing pages in order and returns the
// ad links found, deduplicated within the category, in first-seen order.
//
// The site publishes no page count, so two heuristics terminate the walk:
// a page with zero ad rows, or a request whose final resolved URL differs
// from the requested one (nonexistent pages redirect back to page 1 or to
// the category root). If the site ever changes either behavior this will
// silently under- or over-collect; no stronger signal exists.
func (pg *Paginator) CollectLinks(ctx context.Context, sellURL string) []string {
	var links []string
	seen := make(map[string]struct{})

	for page := 1; page <= pg.maxPages; page++ {
		if ctx.Err() != nil {
			break
		}

		pageURL := PageURL(sellURL, page)
		res, err := pg.client.Fetch(ctx, pageURL)
		if err != nil {
			slog.Warn("listing fetch failed",
				slog.String("url", pageURL),
				slog.Any("error", err),
			)
			break
		}
		if res.FinalURL != pageURL {
			slog.Debug("listing redirected, stopping",
				slog.String("requested", pageURL),
				slog.String("resolved", res.FinalURL),
			)
			break
		}

		pageLinks, err := pg.extractRowLinks(res.Body)
		if err != nil {
			slog.Warn("listing parse failed",
				slog.String("url", pageURL),
				slog.Any("error", err),
			)
			break
		}
		if len(pageLinks) == 0 {
			break
		}
		pg.metrics.IncListingPages()
		atomic.AddInt64(&pg.pages, 1)

		added := 0
		for _, link := range pageLinks {
			if _, ok := seen[link]; ok {
				continue
			}
			seen[link] = struct{}{}
			links = append(links, link)
			added++
		}
		slog.Debug("listing page collected",
			slog.String("url", pageURL),
			slog.Int("added", added),
			slog.Int("total", len(links)),
		)
	}

	return links
}

// extractRowLinks pulls ad links out of a listing page. Ad rows carry a
// "tr_" id prefix; rows with fewer than three cells or no anchor in the
// second cell are skipped silently (banners and spacer rows).
func (pg *Paginator) extractRowLinks(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var links []string
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		id, ok := row.Attr("id")
		if !ok || !strings.HasPrefix(id, "tr_") {
			return
		}
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}
		anchor := cells.Eq(1).Find("a[href]").First()
		href, ok := anchor.Attr("href")
		if !ok || href == "" {
			return
		}
		links = append(links, pg.norm.Absolute(href))
	})
	return links, nil
}

// pagesSeen returns the number of listing pages that yielded ad rows.
func (pg *Paginator) pagesSeen() int {
	return int(atomic.LoadInt64(&pg.pages))
}

// Aggregator merges per-category link sequences into one globally
// deduplicated sequence preserving first-seen order.
type Aggregator struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	links []string
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{seen: make(map[string]struct{})}
}

// Add records a link, reporting whether it was new.
func (a *Aggregator) Add(link string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.seen[link]; ok {
		return false
	}
	a.seen[link] = struct{}{}
	a.links = append(a.links, link)
	return true
}

// AddAll records a batch of links, reporting how many were new.
func (a *Aggregator) AddAll(links []string) int {
	added := 0
	for _, link := range links {
		if a.Add(link) {
			added++
		}
	}
	return added
}

// Links returns the deduplicated sequence in first-seen order.
func (a *Aggregator) Links() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.links))
	copy(out, a.links)
	return out
}
