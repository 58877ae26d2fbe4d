package aggregator

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/IshaanNene/newsblend/internal/pipeline"
	"github.com/IshaanNene/newsblend/internal/types"
)

// Labels and placeholders used when normalizing.
const (
	WordPressSource = "WordPress"
	DefaultSource   = "MongoDB"
	PlaceholderLink = "#"

	// SyntheticLinkPrefix marks links generated for documents inserted
	// without one. They are not rendered.
	SyntheticLinkPrefix = "urn:uuid:"
)

// NormalizeWPPost maps a WordPress post. Posts without an id fall back to
// their position in the response. Unparsable dates become now.
func NormalizeWPPost(p types.WPPost, index int, now time.Time) types.ContentItem {
	id := strconv.Itoa(index)
	if p.ID != 0 {
		id = strconv.FormatInt(p.ID, 10)
	}

	// WordPress reports site-local time without an offset; read it as UTC.
	date, err := dateparse.ParseIn(p.Date, time.UTC)
	if err != nil || p.Date == "" {
		date = now
	}

	return types.ContentItem{
		ID:      "wp-" + id,
		Title:   p.Title,
		Content: p.Content,
		Excerpt: p.Excerpt,
		Date:    date,
		Slug:    p.Slug,
		Type:    types.TypeWP,
		Source:  WordPressSource,
		Link:    p.Link,
	}
}

// NormalizeNewsDocument maps a stored document. excerptLength bounds the
// excerpt derived from content when the document has no description.
func NormalizeNewsDocument(d types.NewsDocument, index, excerptLength int, now time.Time) types.ContentItem {
	id := strconv.Itoa(index)
	if !d.ID.IsZero() {
		id = d.ID.Hex()
	}

	content := d.Content
	if content == "" {
		content = d.Description
	}

	excerpt := d.Description
	if excerpt == "" && d.Content != "" {
		excerpt = pipeline.Truncate(d.Content, excerptLength) + "..."
	}

	date := d.Date
	if date.IsZero() {
		date = d.ScrapedAt
	}
	if date.IsZero() {
		date = now
	}

	source := d.Source
	if source == "" {
		source = DefaultSource
	}

	link := d.Link
	if link == "" || strings.HasPrefix(link, SyntheticLinkPrefix) {
		link = PlaceholderLink
	}

	return types.ContentItem{
		ID:      "mongo-" + id,
		Title:   types.Rendered{Rendered: d.Title},
		Content: types.Rendered{Rendered: content},
		Excerpt: types.Rendered{Rendered: excerpt},
		Date:    date,
		Slug:    "mongo-" + strconv.Itoa(index),
		Type:    types.TypeNews,
		Source:  source,
		Link:    link,
	}
}

// NormalizeSeed maps a seed record; source is the configured outlet name.
func NormalizeSeed(s SeedItem, index, excerptLength int, source string) types.ContentItem {
	slug := s.Slug
	if slug == "" {
		slug = strconv.Itoa(index)
	}

	excerpt := s.Description
	if excerpt == "" && s.Content != "" {
		excerpt = pipeline.Truncate(s.Content, excerptLength) + "..."
	}
	content := s.Content
	if content == "" {
		content = s.Description
	}

	link := s.Link
	if link == "" {
		link = PlaceholderLink
	}

	return types.ContentItem{
		ID:      "seed-" + slug,
		Title:   types.Rendered{Rendered: s.Title},
		Content: types.Rendered{Rendered: content},
		Excerpt: types.Rendered{Rendered: excerpt},
		Date:    s.Date,
		Slug:    slug,
		Type:    types.TypeNews,
		Source:  source,
		Link:    link,
	}
}

// SortByDateDesc orders items newest first. Items with equal dates keep
// their relative order.
func SortByDateDesc(items []types.ContentItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.After(items[j].Date)
	})
}
