package scraper

import (
	"context"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/zemeslab/sslv-plots/config"
	"github.com/zemeslab/sslv-plots/models"
)

func newExtractorHarness(t *testing.T) (*Extractor, *httpmock.MockTransport) {
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

	return NewExtractor(client, metrics), transport
}

const fullAdPage = `<html><body>
<table>
<tr><td>Pilsēta:</td><td id="tdo_20">Rīga</td></tr>
<tr><td>Iela:</td><td id="tdo_11">Brīvības iela 1</td></tr>
<tr><td>Ciems:</td><td id="tdo_368">Baloži</td></tr>
<tr><td>Platība:</td><td id="tdo_3">2500 m²</td></tr>
<tr><td>Cena:</td><td id="tdo_8">15 000 € (6,00 €/m²)</td></tr>
<tr><td>Zemes tips:</td><td id="tdo_228">Zeme</td></tr>
<tr><td>Kadastra numurs:</td><td id="tdo_1631">0100 123 4567</td></tr>
</table>
<table><tr><td class="msg_footer">Datums: 05.03.2026. 14:22</td></tr></table>
</body></html>`

func TestExtractFullPage(t *testing.T) {
	e, transport := newExtractorHarness(t)
	link := "http://example.test/msg/plots/full.html"
	transport.RegisterResponder("GET", link, htmlResponder(fullAdPage))

	rec, err := e.Extract(context.Background(), link)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	checks := []struct {
		name, got, want string
	}{
		{"Link", rec.Link, link},
		{"City", rec.City, "Rīga"},
		{"Street", rec.Street, "Brīvības iela 1"},
		{"Village", rec.Village, "Baloži"},
		{"RawArea", rec.RawArea, "2500 m²"},
		{"RawPrice", rec.RawPrice, "15 000 € (6,00 €/m²)"},
		{"LandType", rec.LandType, "Zeme"},
		{"CadastralNumber", rec.CadastralNumber, "0100 123 4567"},
		{"PostedDate", rec.PostedDate, "05.03.2026."},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
}

func TestExtractMissingFieldsUseSentinel(t *testing.T) {
	e, transport := newExtractorHarness(t)
	link := "http://example.test/msg/plots/sparse.html"
	transport.RegisterResponder("GET", link, htmlResponder(
		`<html><body><table><tr><td id="tdo_8">1 200 €</td></tr></table></body></html>`))

	rec, err := e.Extract(context.Background(), link)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.RawPrice != "1 200 €" {
		t.Errorf("RawPrice = %q", rec.RawPrice)
	}
	for name, got := range map[string]string{
		"City":            rec.City,
		"Street":          rec.Street,
		"Village":         rec.Village,
		"RawArea":         rec.RawArea,
		"LandType":        rec.LandType,
		"CadastralNumber": rec.CadastralNumber,
		"PostedDate":      rec.PostedDate,
	} {
		if got != models.Missing {
			t.Errorf("%s = %q, want %q", name, got, models.Missing)
		}
	}
}

func TestExtractPostedDateISOFormat(t *testing.T) {
	e, transport := newExtractorHarness(t)
	link := "http://example.test/msg/plots/iso.html"
	transport.RegisterResponder("GET", link, htmlResponder(
		`<html><body><div>Datums: 2026-03-05</div></body></html>`))

	rec, err := e.Extract(context.Background(), link)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.PostedDate != "2026-03-05" {
		t.Errorf("PostedDate = %q, want %q", rec.PostedDate, "2026-03-05")
	}
}

func TestExtractPostedDateLabelWithoutDate(t *testing.T) {
	e, transport := newExtractorHarness(t)
	link := "http://example.test/msg/plots/nodate.html"
	transport.RegisterResponder("GET", link, htmlResponder(
		`<html><body><div>Datums: <b>šodien</b></div></body></html>`))

	rec, err := e.Extract(context.Background(), link)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.PostedDate != "Datums: šodien" {
		t.Errorf("PostedDate = %q, want the surrounding text", rec.PostedDate)
	}
}

func TestExtractPostedDateLabelInSplitMarkup(t *testing.T) {
	e, transport := newExtractorHarness(t)
	link := "http://example.test/msg/plots/split.html"
	// date lives in a sibling element under the same parent as the label
	transport.RegisterResponder("GET", link, htmlResponder(
		`<html><body><table><tr><td class="msg_footer">Datums: <span>11.12.2025.</span></td></tr></table></body></html>`))

	rec, err := e.Extract(context.Background(), link)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.PostedDate != "11.12.2025." {
		t.Errorf("PostedDate = %q, want %q", rec.PostedDate, "11.12.2025.")
	}
}

func TestExtractFetchFailurePropagates(t *testing.T) {
	e, transport := newExtractorHarness(t)
	link := "http://example.test/msg/plots/gone.html"
	transport.RegisterResponder("GET", link, httpmock.NewStringResponder(404, ""))

	if _, err := e.Extract(context.Background(), link); err == nil {
		t.Fatal("want error for failed fetch")
	}
}
