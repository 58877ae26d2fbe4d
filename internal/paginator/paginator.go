// Package paginator serves windows of the news store ordered by date.
package paginator

import (
	"context"
	"math"

	"github.com/IshaanNene/newsblend/internal/config"
	"github.com/IshaanNene/newsblend/internal/types"
)

// PageReader reads one page of documents and the total document count.
type PageReader interface {
	FindPage(ctx context.Context, page, limit int) ([]types.NewsDocument, int64, error)
}

// Page is one window of stored news.
type Page struct {
	Items   []types.NewsDocument `json:"items"`
	Page    int                  `json:"page"`
	Limit   int                  `json:"limit"`
	Total   int64                `json:"total"`
	Pages   int64                `json:"pages"`
	HasMore bool                 `json:"hasMore"`
}

// Paginator clamps page requests and reads them from the store.
type Paginator struct {
	store        PageReader
	defaultLimit int
	maxLimit     int
}

// New creates a Paginator.
func New(cfg *config.PaginationConfig, store PageReader) *Paginator {
	return &Paginator{
		store:        store,
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
	}
}

// DefaultLimit is the page size used when the caller gives none.
func (p *Paginator) DefaultLimit() int { return p.defaultLimit }

// Clamp raises page and limit to at least 1 and caps limit at the
// configured maximum.
func (p *Paginator) Clamp(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	if p.maxLimit > 0 && limit > p.maxLimit {
		limit = p.maxLimit
	}
	return page, limit
}

// GetPage returns the documents at positions (page-1)*limit onward. A page
// whose offset does not fit in an int64 is past the end of any collection
// and comes back empty with the real total.
func (p *Paginator) GetPage(ctx context.Context, page, limit int) (Page, error) {
	page, limit = p.Clamp(page, limit)

	var (
		items []types.NewsDocument
		total int64
		err   error
	)
	if int64(page-1) > math.MaxInt64/int64(limit) {
		_, total, err = p.store.FindPage(ctx, 1, 1)
	} else {
		items, total, err = p.store.FindPage(ctx, page, limit)
	}
	if err != nil {
		return Page{}, err
	}
	if items == nil {
		items = []types.NewsDocument{}
	}

	return Page{
		Items:   items,
		Page:    page,
		Limit:   limit,
		Total:   total,
		Pages:   (total + int64(limit) - 1) / int64(limit),
		HasMore: hasMore(page, limit, len(items), total),
	}, nil
}

// hasMore reports whether documents remain after the window that starts at
// (page-1)*limit and holds n items.
func hasMore(page, limit, n int, total int64) bool {
	if int64(page-1) > math.MaxInt64/int64(limit) {
		return false
	}
	offset := int64(page-1) * int64(limit)
	return total-offset > int64(n)
}
