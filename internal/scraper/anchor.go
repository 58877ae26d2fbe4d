package scraper

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/antchfx/htmlquery"

	"github.com/IshaanNene/newsblend/internal/types"
)

// anchorXPath selects every anchor carrying an href.
const anchorXPath = "//a[@href]"

// AnchorStrategy is the fallback for pages without structured listing
// markup: every anchor whose href contains PathFragment and whose text is
// longer than MinTextLength becomes an item dated at scrape time.
type AnchorStrategy struct {
	PathFragment  string
	MinTextLength int
}

func (a *AnchorStrategy) Name() string { return "anchor" }

func (a *AnchorStrategy) Extract(page *Page) ([]types.ScrapedItem, error) {
	root := page.Root()
	if root == nil {
		return nil, nil
	}

	nodes, err := htmlquery.QueryAll(root, anchorXPath)
	if err != nil {
		return nil, &types.ScrapeParseError{Source: page.Source.Name, Selector: anchorXPath, Err: fmt.Errorf("xpath: %w", err)}
	}

	var items []types.ScrapedItem
	for _, n := range nodes {
		title := collapse(htmlquery.InnerText(n))
		href := htmlquery.SelectAttr(n, "href")
		if utf8.RuneCountInString(title) <= a.MinTextLength || !strings.Contains(href, a.PathFragment) {
			continue
		}
		link := page.Resolve(href)
		if link == "" {
			continue
		}
		items = append(items, types.ScrapedItem{
			Title:       title,
			Link:        link,
			Description: title,
			Date:        page.Now,
			Source:      page.Source.Name,
		})
	}
	return items, nil
}
