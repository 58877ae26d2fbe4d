package pipeline

import (
	"html"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/IshaanNene/newsblend/internal/types"
)

// collapse trims s and folds internal whitespace runs into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// TrimMiddleware normalizes whitespace in the text fields.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(item *types.ScrapedItem) (*types.ScrapedItem, error) {
	item.Title = collapse(item.Title)
	item.Description = collapse(item.Description)
	item.Source = strings.TrimSpace(item.Source)
	item.Link = strings.TrimSpace(item.Link)
	item.ImageURL = strings.TrimSpace(item.ImageURL)
	return item, nil
}

// HTMLSanitizeMiddleware strips HTML tags and entities from title and
// description.
type HTMLSanitizeMiddleware struct {
	stripRe *regexp.Regexp
}

func NewHTMLSanitizeMiddleware() *HTMLSanitizeMiddleware {
	return &HTMLSanitizeMiddleware{
		stripRe: regexp.MustCompile(`<[^>]*>`),
	}
}

func (m *HTMLSanitizeMiddleware) Name() string { return "html_sanitize" }

func (m *HTMLSanitizeMiddleware) Process(item *types.ScrapedItem) (*types.ScrapedItem, error) {
	item.Title = m.clean(item.Title)
	item.Description = m.clean(item.Description)
	return item, nil
}

func (m *HTMLSanitizeMiddleware) clean(s string) string {
	if s == "" {
		return s
	}
	s = m.stripRe.ReplaceAllString(s, "")
	return collapse(html.UnescapeString(s))
}

// RequiredFieldsMiddleware drops items without a link or with a title
// shorter than MinTitleLength runes.
type RequiredFieldsMiddleware struct {
	MinTitleLength int
}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(item *types.ScrapedItem) (*types.ScrapedItem, error) {
	if item.Link == "" || item.Title == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(item.Title) < m.MinTitleLength {
		return nil, nil
	}
	return item, nil
}

// DefaultValueMiddleware fills in the description and source when missing.
type DefaultValueMiddleware struct {
	Source            string
	DescriptionLength int
}

func (m *DefaultValueMiddleware) Name() string { return "default_values" }

func (m *DefaultValueMiddleware) Process(item *types.ScrapedItem) (*types.ScrapedItem, error) {
	if item.Description == "" {
		item.Description = Truncate(item.Title, m.DescriptionLength) + "..."
	}
	if item.Source == "" {
		item.Source = m.Source
	}
	return item, nil
}

// DedupMiddleware drops items whose lower-cased link was already seen.
// The first occurrence wins.
type DedupMiddleware struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewDedupMiddleware() *DedupMiddleware {
	return &DedupMiddleware{seen: make(map[string]struct{})}
}

func (m *DedupMiddleware) Name() string { return "dedup" }

func (m *DedupMiddleware) Process(item *types.ScrapedItem) (*types.ScrapedItem, error) {
	key := strings.ToLower(item.Link)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.seen[key]; exists {
		return nil, nil
	}
	m.seen[key] = struct{}{}
	return item, nil
}
