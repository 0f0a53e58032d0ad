package scraper

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/zemeslab/sslv-plots/models"
)

// Field ids are stable label→value anchors on the ad detail pages.
const (
	idCity            = "tdo_20"
	idStreet          = "tdo_11"
	idVillage         = "tdo_368"
	idArea            = "tdo_3"
	idPrice           = "tdo_8"
	idLandType        = "tdo_228"
	idCadastralNumber = "tdo_1631"
)

var (
	postedLabelRe = regexp.MustCompile(`\bDatums:`)
	postedDateRe  = regexp.MustCompile(`(\d{2}\.\d{2}\.\d{4}\.|\d{4}-\d{2}-\d{2})`)
)

// Extractor turns ad detail pages into raw records. Missing fields become
// the sentinel value, never an error; only the fetch itself can fail.
type Extractor struct {
	client  *Client
	metrics *Metrics
}

// NewExtractor builds an extractor over the shared client.
func NewExtractor(client *Client, metrics *Metrics) *Extractor {
	return &Extractor{client: client, metrics: metrics}
}

// Extract fetches one ad page and pulls the fixed field set.
func (e *Extractor) Extract(ctx context.Context, link string) (*models.AdRecord, error) {
	page, err := e.client.Fetch(ctx, link)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse ad page: %w", err)
	}

	rec := &models.AdRecord{
		Link:            link,
		City:            textByID(doc, idCity),
		Street:          textByID(doc, idStreet),
		Village:         textByID(doc, idVillage),
		RawArea:         textByID(doc, idArea),
		RawPrice:        textByID(doc, idPrice),
		LandType:        textByID(doc, idLandType),
		CadastralNumber: textByID(doc, idCadastralNumber),
		PostedDate:      extractPostedDate(doc),
	}
	e.metrics.IncAds()
	return rec, nil
}

func textByID(doc *goquery.Document, id string) string {
	sel := doc.Find("#" + id)
	if sel.Length() == 0 {
		return models.Missing
	}
	return strings.TrimSpace(sel.First().Text())
}

// extractPostedDate locates the "Datums:" label anywhere in the page text
// and extracts one of the two date formats the site uses from the
// surrounding element. Label absent means the sentinel; label present with
// no recognizable date returns the surrounding text verbatim so analysts
// still see what was there.
func extractPostedDate(doc *goquery.Document) string {
	root := doc.Get(0)
	if root == nil {
		return models.Missing
	}

	parent := findLabelParent(root)
	if parent == nil {
		return models.Missing
	}

	text := nodeText(parent)
	if m := postedDateRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

// findLabelParent walks the DOM for the first text node matching the date
// label and returns its parent element.
func findLabelParent(n *html.Node) *html.Node {
	if n.Type == html.TextNode && postedLabelRe.MatchString(n.Data) {
		return n.Parent
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findLabelParent(child); found != nil {
			return found
		}
	}
	return nil
}

// nodeText joins all text under a node with single spaces.
func nodeText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			parts = append(parts, strings.Fields(node.Data)...)
			return
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}
