package scraper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/zemeslab/sslv-plots/config"
	"github.com/zemeslab/sslv-plots/models"
	"github.com/zemeslab/sslv-plots/parser"
	"github.com/zemeslab/sslv-plots/pipeline"
)

// collectingWriter captures pipeline output in memory.
type collectingWriter struct {
	mu      sync.Mutex
	records []*models.AdRecord
	closed  bool
}

func (w *collectingWriter) Write(records []*models.AdRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, records...)
	return nil
}

func (w *collectingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *collectingWriter) Validate() error { return nil }

func (w *collectingWriter) all() []*models.AdRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*models.AdRecord, len(w.records))
	copy(out, w.records)
	return out
}

func adPage(city, price string) string {
	return `<html><body><table>
		<tr><td>Pilsēta:</td><td id="tdo_20">` + city + `</td></tr>
		<tr><td>Platība:</td><td id="tdo_3">1200 m²</td></tr>
		<tr><td>Cena:</td><td id="tdo_8">` + price + `</td></tr>
		<tr><td class="msg_footer">Datums: 10.08.2026.</td></tr>
	</table></body></html>`
}

func TestRunEndToEnd(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://example.test"
	cfg.RootPath = "/plots/"
	cfg.IncludeAggregate = true
	cfg.Delay = 0
	cfg.MaxRetries = 0
	cfg.Parallelism = 2
	cfg.OutputFile = "unused"

	s, err := NewScraper(cfg)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	transport := httpmock.NewMockTransport()
	s.client.WithTransport(transport)

	// category tree: root plus one subcategory
	transport.RegisterResponder("GET", "http://example.test/plots/",
		htmlResponder(categoryPage("/plots/riga/")))
	transport.RegisterResponder("GET", "http://example.test/plots/riga/",
		htmlResponder(categoryPage()))

	// aggregate listing repeats an ad the subcategory also lists
	transport.RegisterResponder("GET", "http://example.test/plots/riga/sell/",
		htmlResponder(listingPage("/msg/plots/shared.html", "/msg/plots/b.html")))
	transport.RegisterResponder("GET", "http://example.test/plots/riga/sell/page2.html",
		htmlResponder(listingPage()))
	transport.RegisterResponder("GET", "http://example.test/plots/sell/",
		htmlResponder(listingPage("/msg/plots/a.html", "/msg/plots/shared.html")))
	transport.RegisterResponder("GET", "http://example.test/plots/sell/page2.html",
		htmlResponder(listingPage()))

	transport.RegisterResponder("GET", "http://example.test/msg/plots/shared.html",
		htmlResponder(adPage("Rīga", "9 000 €")))
	transport.RegisterResponder("GET", "http://example.test/msg/plots/b.html",
		htmlResponder(adPage("Rīga", "4 500 € (3,75 €/m²)")))
	transport.RegisterResponder("GET", "http://example.test/msg/plots/a.html",
		htmlResponder(adPage("Jūrmala", "NA")))

	writer := &collectingWriter{}
	p := pipeline.NewPipeline(writer, cfg)
	p.Start(1)

	result, err := s.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("pipeline close: %v", err)
	}

	if result.CategoryCount != 2 {
		t.Errorf("CategoryCount = %d, want 2", result.CategoryCount)
	}
	if result.SellURLCount != 2 {
		t.Errorf("SellURLCount = %d, want 2", result.SellURLCount)
	}
	if result.ListingPageCount != 2 {
		t.Errorf("ListingPageCount = %d, want 2", result.ListingPageCount)
	}
	if result.LinkCount != 3 {
		t.Errorf("LinkCount = %d, want 3 after cross-category dedup", result.LinkCount)
	}
	if result.RecordCount != 3 {
		t.Errorf("RecordCount = %d, want 3", result.RecordCount)
	}
	if result.ErrorCount != 0 {
		t.Errorf("ErrorCount = %d, want 0", result.ErrorCount)
	}

	records := writer.all()
	if len(records) != 3 {
		t.Fatalf("wrote %d records, want 3", len(records))
	}

	// sell URLs are sorted, so the subcategory listing merges first
	wantLinks := []string{
		"http://example.test/msg/plots/shared.html",
		"http://example.test/msg/plots/b.html",
		"http://example.test/msg/plots/a.html",
	}
	today := parser.CollectionDate(time.Now())
	for i, rec := range records {
		if rec.Link != wantLinks[i] {
			t.Errorf("records[%d].Link = %q, want %q", i, rec.Link, wantLinks[i])
		}
		if rec.CollectionDate != today {
			t.Errorf("records[%d].CollectionDate = %q, want %q", i, rec.CollectionDate, today)
		}
		if rec.PostedDate != "10.08.2026." {
			t.Errorf("records[%d].PostedDate = %q", i, rec.PostedDate)
		}
	}

	if records[1].PriceEUR == nil || *records[1].PriceEUR != 4500 {
		t.Errorf("records[1].PriceEUR = %v, want 4500", records[1].PriceEUR)
	}
	if records[1].PriceEURPerM2 == nil || *records[1].PriceEURPerM2 != 3.75 {
		t.Errorf("records[1].PriceEURPerM2 = %v, want 3.75", records[1].PriceEURPerM2)
	}
	if records[2].PriceEUR != nil {
		t.Errorf("records[2].PriceEUR = %v, want nil for unparseable price", records[2].PriceEUR)
	}
}

func TestRunSurvivesDeadSubcategory(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://example.test"
	cfg.RootPath = "/plots/"
	cfg.IncludeAggregate = false
	cfg.Delay = 0
	cfg.MaxRetries = 0
	cfg.Parallelism = 1

	s, err := NewScraper(cfg)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	transport := httpmock.NewMockTransport()
	s.client.WithTransport(transport)

	transport.RegisterResponder("GET", "http://example.test/plots/",
		htmlResponder(categoryPage("/plots/dead/", "/plots/live/")))
	transport.RegisterResponder("GET", "http://example.test/plots/dead/",
		httpmock.NewStringResponder(500, ""))
	transport.RegisterResponder("GET", "http://example.test/plots/live/",
		htmlResponder(categoryPage()))

	transport.RegisterResponder("GET", "http://example.test/plots/sell/",
		htmlResponder(listingPage()))
	transport.RegisterResponder("GET", "http://example.test/plots/dead/sell/",
		httpmock.NewStringResponder(500, ""))
	transport.RegisterResponder("GET", "http://example.test/plots/live/sell/",
		htmlResponder(listingPage("/msg/plots/x.html")))
	transport.RegisterResponder("GET", "http://example.test/plots/live/sell/page2.html",
		htmlResponder(listingPage()))
	transport.RegisterResponder("GET", "http://example.test/msg/plots/x.html",
		htmlResponder(adPage("Rīga", "1 €")))

	writer := &collectingWriter{}
	p := pipeline.NewPipeline(writer, cfg)
	p.Start(1)

	result, err := s.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("pipeline close: %v", err)
	}

	if result.RecordCount != 1 {
		t.Errorf("RecordCount = %d, want 1", result.RecordCount)
	}
	if result.ErrorCount == 0 {
		t.Error("ErrorCount should reflect the dead subcategory")
	}
	if len(result.FailedURLs) == 0 {
		t.Error("FailedURLs should list the dead endpoints")
	}
	if result.ErrorsByType["server_error"] == 0 {
		t.Errorf("ErrorsByType = %v, want server_error entries", result.ErrorsByType)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://example.test"
	cfg.RootPath = "/plots/"
	cfg.Delay = 0
	cfg.MaxRetries = 0

	s, err := NewScraper(cfg)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	s.client.WithTransport(httpmock.NewMockTransport())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	writer := &collectingWriter{}
	p := pipeline.NewPipeline(writer, cfg)
	p.Start(1)

	result, err := s.Run(ctx, p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("pipeline close: %v", err)
	}

	if result.RequestCount != 0 {
		t.Errorf("RequestCount = %d, want 0 after pre-cancellation", result.RequestCount)
	}
	if len(writer.all()) != 0 {
		t.Errorf("no records expected, got %d", len(writer.all()))
	}
}
