package scraper

import (
	"fmt"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zemeslab/sslv-plots/config"
)

// Listing suffixes hang off a category node as "<node>sell/" and
// "<node>sell/pageN.html"; stripping them maps every spelling of a
// category back to the node itself.
var sellSuffixRe = regexp.MustCompile(`/sell(/.*)?$`)

// Normalizer canonicalizes category URLs: absolute form against the base
// origin, listing suffix stripped, exactly one trailing slash. Two URLs
// denoting the same category always normalize identically, which is what
// keeps discovery loop-free. Normalization runs for every anchor on every
// discovery page, so results are memoized in a bounded LRU.
type Normalizer struct {
	base     string
	rootPath string
	cache    *lru.Cache[string, string]
}

// NewNormalizer builds a normalizer from the configured base origin and
// root category path.
func NewNormalizer(cfg *config.Config) (*Normalizer, error) {
	cache, err := lru.New[string, string](cfg.URLCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create url cache: %w", err)
	}
	return &Normalizer{
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		rootPath: cfg.RootPath,
		cache:    cache,
	}, nil
}

// Normalize returns the canonical form of a category URL or href.
func (n *Normalizer) Normalize(raw string) string {
	if canonical, ok := n.cache.Get(raw); ok {
		return canonical
	}

	u := raw
	if strings.HasPrefix(u, "/") {
		u = n.base + u
	}
	u = sellSuffixRe.ReplaceAllString(strings.TrimRight(u, "/"), "")
	u = strings.TrimRight(u, "/") + "/"

	n.cache.Add(raw, u)
	return u
}

// InScope reports whether an href stays inside the crawled hierarchy.
// Both site-relative and absolute same-origin forms are accepted.
func (n *Normalizer) InScope(href string) bool {
	if strings.HasPrefix(href, "/") {
		return strings.HasPrefix(href, n.rootPath)
	}
	return strings.HasPrefix(href, n.base+n.rootPath)
}

// Root returns the canonical root category URL.
func (n *Normalizer) Root() string {
	return n.Normalize(n.rootPath)
}

// SellURL returns the listing endpoint for a canonical category node.
func (n *Normalizer) SellURL(node string) string {
	return node + "sell/"
}

// Absolute resolves a site-relative href against the base origin.
func (n *Normalizer) Absolute(href string) string {
	if strings.HasPrefix(href, "/") {
		return n.base + href
	}
	return href
}

// PageURL returns the URL of the page-th listing page. Page 1 is the bare
// listing endpoint; later pages append the site's index suffix.
func PageURL(sellURL string, page int) string {
	if page <= 1 {
		return sellURL
	}
	return fmt.Sprintf("%spage%d.html", sellURL, page)
}
