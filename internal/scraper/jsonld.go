package scraper

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/newsblend/internal/types"
)

const jsonLDSelector = `script[type="application/ld+json"]`

// articleTypes are the schema.org types read as news items.
var articleTypes = map[string]bool{
	"NewsArticle":          true,
	"Article":              true,
	"BlogPosting":          true,
	"ReportageNewsArticle": true,
	"AnalysisNewsArticle":  true,
}

// JSONLDStrategy reads schema.org articles embedded as JSON-LD, including
// articles nested in an ItemList or an @graph.
type JSONLDStrategy struct{}

func (JSONLDStrategy) Name() string { return "jsonld" }

func (JSONLDStrategy) Extract(page *Page) ([]types.ScrapedItem, error) {
	var items []types.ScrapedItem
	page.Doc.Find(jsonLDSelector).Each(func(i int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}
		var data any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return
		}
		walkJSONLD(data, func(node map[string]any) {
			if item, ok := articleItem(page, node); ok {
				items = append(items, item)
			}
		})
	})
	return items, nil
}

// walkJSONLD calls fn for every object reachable through arrays, @graph,
// itemListElement and ListItem.item.
func walkJSONLD(v any, fn func(map[string]any)) {
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			walkJSONLD(e, fn)
		}
	case map[string]any:
		fn(t)
		for _, key := range []string{"@graph", "itemListElement", "item"} {
			if child, ok := t[key]; ok {
				walkJSONLD(child, fn)
			}
		}
	}
}

func articleItem(page *Page, node map[string]any) (types.ScrapedItem, bool) {
	if !hasArticleType(node["@type"]) {
		return types.ScrapedItem{}, false
	}
	title := collapse(firstString(node["headline"], node["name"]))
	link := page.Resolve(firstString(node["url"], node["mainEntityOfPage"], node["@id"]))
	if title == "" || link == "" {
		return types.ScrapedItem{}, false
	}
	return types.ScrapedItem{
		Title:       title,
		Link:        link,
		Description: collapse(firstString(node["description"])),
		Date:        ParseDate(firstString(node["datePublished"], node["dateCreated"]), page.Now),
		Source:      page.Source.Name,
		ImageURL:    page.Resolve(firstString(node["image"])),
	}, true
}

func hasArticleType(v any) bool {
	switch t := v.(type) {
	case string:
		return articleTypes[t]
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && articleTypes[s] {
				return true
			}
		}
	}
	return false
}

// firstString returns the first non-empty string among vs. Objects yield
// their url or @id, arrays their first element.
func firstString(vs ...any) string {
	for _, v := range vs {
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case map[string]any:
			if s := firstString(t["url"], t["@id"]); s != "" {
				return s
			}
		case []any:
			if len(t) > 0 {
				if s := firstString(t[0]); s != "" {
					return s
				}
			}
		}
	}
	return ""
}
