// Package storage persists scraped and manually inserted news documents.
package storage

import (
	"context"
	"math"

	"github.com/IshaanNene/newsblend/internal/types"
)

// NewsStore is the interface for all news storage backends. Link is the
// unique key of a document.
type NewsStore interface {
	// FindRecent returns documents ordered by date descending. A limit of
	// zero returns every document.
	FindRecent(ctx context.Context, limit int) ([]types.NewsDocument, error)

	// FindPage returns one page of documents ordered by date descending
	// together with the total document count.
	FindPage(ctx context.Context, page, limit int) ([]types.NewsDocument, int64, error)

	// UpsertByLink inserts doc, or replaces the fields of the document that
	// already holds doc.Link and refreshes its scrapedAt.
	UpsertByLink(ctx context.Context, doc types.NewsDocument) (*types.NewsDocument, error)

	// Insert validates and inserts a new document. A link collision is
	// reported as types.ErrDuplicateKey.
	Insert(ctx context.Context, doc types.NewsDocument) (*types.NewsDocument, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int64, error)

	// Close releases resources.
	Close(ctx context.Context) error

	// Name returns the storage backend identifier.
	Name() string
}

// skip returns the number of documents preceding the given page, clamping
// page and limit to at least one. Offsets past math.MaxInt saturate.
func skip(page, limit int) int {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}
