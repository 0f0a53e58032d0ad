package scraper

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/PuerkitoBio/goquery"
)

// Discovery is the result of a category traversal. Nodes are canonical
// category URLs in visit order; Children records the parent→children edges
// actually followed, which reproduces the hierarchy when a depth bound is
// in effect.
type Discovery struct {
	Nodes    []string
	Children map[string][]string
}

// Discoverer walks the region/subregion category tree breadth-first.
type Discoverer struct {
	client   *Client
	norm     *Normalizer
	metrics  *Metrics
	maxDepth int // 0 means unbounded
}

// NewDiscoverer builds a discoverer over the shared client. maxDepth
// limits how deep below the root the traversal descends; 0 disables the
// bound.
func NewDiscoverer(client *Client, norm *Normalizer, metrics *Metrics, maxDepth int) *Discoverer {
	return &Discoverer{
		client:   client,
		norm:     norm,
		metrics:  metrics,
		maxDepth: maxDepth,
	}
}

type discoverItem struct {
	url   string
	depth int
}

// Discover returns every category node reachable from root by following
// in-scope category anchors. Listing ("/sell/") links are generated later,
// never followed. A node that fails to fetch is a dead end, not a fatal
// error. The visited set guarantees no canonical URL is fetched twice, so
// the traversal terminates on any finite link graph.
func (d *Discoverer) Discover(ctx context.Context, root string) *Discovery {
	start := d.norm.Normalize(root)

	visited := make(map[string]struct{})
	queued := map[string]struct{}{start: {}}
	queue := []discoverItem{{url: start, depth: 0}}

	disc := &Discovery{Children: make(map[string][]string)}

	for len(queue) > 0 {
		if ctx.Err() != nil {
			slog.Info("discovery cancelled", slog.Int("visited", len(visited)))
			break
		}

		cur := queue[0]
		queue = queue[1:]
		if _, ok := visited[cur.url]; ok {
			continue
		}
		visited[cur.url] = struct{}{}
		disc.Nodes = append(disc.Nodes, cur.url)
		d.metrics.IncCategories()

		// Nodes at the depth bound contribute no children, so fetching
		// their pages would only burn politeness budget.
		if d.maxDepth > 0 && cur.depth >= d.maxDepth {
			continue
		}

		page, err := d.client.Fetch(ctx, cur.url)
		if err != nil {
			slog.Warn("category fetch failed",
				slog.String("url", cur.url),
				slog.Any("error", err),
			)
			continue
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
		if err != nil {
			slog.Warn("category parse failed",
				slog.String("url", cur.url),
				slog.Any("error", err),
			)
			continue
		}

		doc.Find("a.a_category").Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			if !ok || !d.norm.InScope(href) {
				return
			}
			child := d.norm.Normalize(href)
			if child == cur.url {
				return
			}
			if _, ok := queued[child]; ok {
				return
			}
			queued[child] = struct{}{}
			queue = append(queue, discoverItem{url: child, depth: cur.depth + 1})
			disc.Children[cur.url] = append(disc.Children[cur.url], child)
		})

		if len(visited)%10 == 0 {
			slog.Debug("discovery progress", slog.Int("visited", len(visited)), slog.Int("queued", len(queue)))
		}
	}

	slog.Info("discovery complete", slog.Int("categories", len(disc.Nodes)))
	return disc
}
