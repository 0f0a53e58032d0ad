package scraper

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/zemeslab/sslv-plots/config"
)

func newDiscoverHarness(t *testing.T, maxDepth int) (*Discoverer, *httpmock.MockTransport) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://example.test"
	cfg.RootPath = "/plots/"
	cfg.Delay = 0
	cfg.MaxRetries = 0

	metrics := NewMetrics()
	client, err := NewClient(cfg, metrics)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	transport := httpmock.NewMockTransport()
	client.WithTransport(transport)

	norm, err := NewNormalizer(cfg)
	if err != nil {
		t.Fatalf("new normalizer: %v", err)
	}
	return NewDiscoverer(client, norm, metrics, maxDepth), transport
}

func categoryPage(hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<a class="a_category" href=%q>cat</a>`, h)
	}
	// anchors without the category class are never followed
	b.WriteString(`<a href="/plots/hidden/">hidden</a>`)
	b.WriteString("</body></html>")
	return b.String()
}

func TestDiscoverWalksScopedTree(t *testing.T) {
	d, transport := newDiscoverHarness(t, 0)

	transport.RegisterResponder("GET", "http://example.test/plots/",
		htmlResponder(categoryPage(
			"/plots/riga/",
			"/plots/jurmala/",
			"/plots/riga/sell/",  // listing spelling of an already-known node
			"/flats/riga/",       // out of scope
			"http://other.test/plots/x/", // wrong origin
		)))
	transport.RegisterResponder("GET", "http://example.test/plots/riga/",
		htmlResponder(categoryPage("/plots/riga/centre/", "/plots/")))
	transport.RegisterResponder("GET", "http://example.test/plots/jurmala/",
		httpmock.NewStringResponder(500, ""))
	transport.RegisterResponder("GET", "http://example.test/plots/riga/centre/",
		htmlResponder(categoryPage()))

	disc := d.Discover(context.Background(), "http://example.test/plots/")

	want := []string{
		"http://example.test/plots/",
		"http://example.test/plots/riga/",
		"http://example.test/plots/jurmala/",
		"http://example.test/plots/riga/centre/",
	}
	if len(disc.Nodes) != len(want) {
		t.Fatalf("nodes = %v, want %v", disc.Nodes, want)
	}
	for i := range want {
		if disc.Nodes[i] != want[i] {
			t.Errorf("nodes[%d] = %q, want %q", i, disc.Nodes[i], want[i])
		}
	}

	// dedup guarantee: no canonical URL fetched twice
	for url, count := range transport.GetCallCountInfo() {
		if count > 1 {
			t.Errorf("%s fetched %d times", url, count)
		}
	}
}

func TestDiscoverFailedNodeIsDeadEndNotFatal(t *testing.T) {
	d, transport := newDiscoverHarness(t, 0)

	transport.RegisterResponder("GET", "http://example.test/plots/",
		htmlResponder(categoryPage("/plots/broken/", "/plots/ok/")))
	transport.RegisterResponder("GET", "http://example.test/plots/broken/",
		httpmock.NewStringResponder(500, ""))
	transport.RegisterResponder("GET", "http://example.test/plots/ok/",
		htmlResponder(categoryPage()))

	disc := d.Discover(context.Background(), "http://example.test/plots/")

	if len(disc.Nodes) != 3 {
		t.Fatalf("nodes = %v, want root + broken + ok", disc.Nodes)
	}
}

func TestDiscoverDepthBound(t *testing.T) {
	d, transport := newDiscoverHarness(t, 1)

	// deliberately no responder for /plots/riga/: nodes at the bound
	// contribute no children, so their pages must not be requested
	transport.RegisterResponder("GET", "http://example.test/plots/",
		htmlResponder(categoryPage("/plots/riga/")))

	disc := d.Discover(context.Background(), "http://example.test/plots/")

	if len(disc.Nodes) != 2 {
		t.Fatalf("nodes = %v, want root and riga only", disc.Nodes)
	}
	children := disc.Children["http://example.test/plots/"]
	if len(children) != 1 || children[0] != "http://example.test/plots/riga/" {
		t.Fatalf("children = %v", children)
	}
	if len(disc.Children["http://example.test/plots/riga/"]) != 0 {
		t.Fatalf("depth-bounded node should have no recorded children")
	}
	if n := transport.GetTotalCallCount(); n != 1 {
		t.Fatalf("total requests = %d, want 1 (leaf pages skipped)", n)
	}
}

func TestDiscoverCancelledContext(t *testing.T) {
	d, _ := newDiscoverHarness(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	disc := d.Discover(ctx, "http://example.test/plots/")
	if len(disc.Nodes) != 0 {
		t.Fatalf("no nodes should be visited after cancellation, got %v", disc.Nodes)
	}
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}
