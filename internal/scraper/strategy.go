package scraper

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/newsblend/internal/pipeline"
	"github.com/IshaanNene/newsblend/internal/types"
)

// Strategy extracts news items from a listing page. Strategies are tried in
// order and the first one yielding items wins.
type Strategy interface {
	Name() string
	Extract(page *Page) ([]types.ScrapedItem, error)
}

// Default selectors for common news listing markup.
const (
	DefaultItemSelector        = ".news-list-item, .teaser, article, .news-item, .item, .news"
	DefaultTitleSelector       = "h2, h3, .title, .news-title, a"
	DefaultDescriptionSelector = "p, .description, .excerpt, .summary"
	DefaultDateSelector        = ".date, time, .news-date, .published"
)

// descriptionLength bounds the description synthesized from a title.
const descriptionLength = 200

// SelectorStrategy extracts items from structured listing markup with CSS
// selectors.
type SelectorStrategy struct {
	ItemSelector        string
	TitleSelector       string
	DescriptionSelector string
	DateSelector        string
	MinTitleLength      int
	logger              *slog.Logger
}

// NewSelectorStrategy creates a strategy with the default selectors.
func NewSelectorStrategy(minTitleLength int, logger *slog.Logger) *SelectorStrategy {
	return &SelectorStrategy{
		ItemSelector:        DefaultItemSelector,
		TitleSelector:       DefaultTitleSelector,
		DescriptionSelector: DefaultDescriptionSelector,
		DateSelector:        DefaultDateSelector,
		MinTitleLength:      minTitleLength,
		logger:              logger.With("component", "selector_strategy"),
	}
}

func (s *SelectorStrategy) Name() string { return "selector" }

func (s *SelectorStrategy) Extract(page *Page) ([]types.ScrapedItem, error) {
	var items []types.ScrapedItem
	page.Doc.Find(s.ItemSelector).Each(func(i int, sel *goquery.Selection) {
		item, err := s.extractItem(page, sel)
		if err != nil {
			s.logger.Debug("skipping element", "index", i, "error", &types.ScrapeParseError{
				Source:   page.Source.Name,
				Selector: s.ItemSelector,
				Err:      err,
			})
			return
		}
		if item != nil {
			items = append(items, *item)
		}
	})
	return items, nil
}

// extractItem returns nil without error for elements that are not news items.
func (s *SelectorStrategy) extractItem(page *Page, sel *goquery.Selection) (item *types.ScrapedItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	title := collapse(sel.Find(s.TitleSelector).First().Text())
	if title == "" || utf8.RuneCountInString(title) < s.MinTitleLength {
		return nil, nil
	}

	href, _ := sel.Find("a").First().Attr("href")
	link := page.Resolve(href)
	if link == "" {
		return nil, nil
	}

	description := collapse(sel.Find(s.DescriptionSelector).First().Text())
	if description == "" {
		description = pipeline.Truncate(title, descriptionLength) + "..."
	}

	dateSel := sel.Find(s.DateSelector).First()
	dateText, ok := dateSel.Attr("datetime")
	if !ok || strings.TrimSpace(dateText) == "" {
		dateText = dateSel.Text()
	}

	src, _ := sel.Find("img").First().Attr("src")

	return &types.ScrapedItem{
		Title:       title,
		Link:        link,
		Description: description,
		Date:        ParseDate(dateText, page.Now),
		Source:      page.Source.Name,
		ImageURL:    page.Resolve(src),
	}, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
