package scraper

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Page is a parsed listing page handed to each extraction strategy.
type Page struct {
	Doc    *goquery.Document
	Source Source
	// Now stamps items whose date cannot be determined.
	Now  time.Time
	base *url.URL
}

// NewPage wraps a parsed document. Relative links resolve against the
// source's Base, or against pageURL when Base is unset.
func NewPage(doc *goquery.Document, src Source, pageURL string, now time.Time) *Page {
	p := &Page{Doc: doc, Source: src, Now: now}
	for _, candidate := range []string{src.Base, pageURL, src.URL} {
		if u, err := url.Parse(candidate); err == nil && u.IsAbs() {
			p.base = u
			break
		}
	}
	return p
}

// Root returns the document's root node.
func (p *Page) Root() *html.Node {
	if len(p.Doc.Nodes) == 0 {
		return nil
	}
	return p.Doc.Nodes[0]
}

// Resolve turns an href into an absolute http(s) URL. It returns "" for
// fragments, non-web schemes and unparsable references.
func (p *Page) Resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if !ref.IsAbs() {
		if p.base == nil {
			return ""
		}
		ref = p.base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}
