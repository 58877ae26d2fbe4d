package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/IshaanNene/newsblend/internal/types"
)

// MemoryStore keeps news documents in process memory. It is used when no
// MongoDB URI is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   []types.NewsDocument
	byLink map[string]int
	now    func() time.Time
	logger *slog.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		byLink: make(map[string]int),
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With("component", "memory_store"),
	}
}

func (s *MemoryStore) Name() string { return "memory" }

// sorted returns a copy of the documents ordered by date descending.
func (s *MemoryStore) sorted() []types.NewsDocument {
	out := make([]types.NewsDocument, len(s.docs))
	copy(out, s.docs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}

func (s *MemoryStore) FindRecent(ctx context.Context, limit int) ([]types.NewsDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, &types.StoreError{Op: "find recent", Err: err}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.sorted()
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs, nil
}

func (s *MemoryStore) FindPage(ctx context.Context, page, limit int) ([]types.NewsDocument, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, &types.StoreError{Op: "find page", Err: err}
	}
	if limit < 1 {
		limit = 1
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.sorted()
	total := int64(len(docs))
	start := skip(page, limit)
	if start < 0 || start >= len(docs) {
		return []types.NewsDocument{}, total, nil
	}
	end := start + min(limit, len(docs)-start)
	return docs[start:end], total, nil
}

func (s *MemoryStore) UpsertByLink(ctx context.Context, doc types.NewsDocument) (*types.NewsDocument, error) {
	doc.Normalize()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &types.StoreError{Op: "upsert", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if doc.ScrapedAt.IsZero() {
		doc.ScrapedAt = now
	}
	doc.UpdatedAt = now

	if i, ok := s.byLink[doc.Link]; ok {
		existing := s.docs[i]
		doc.ID = existing.ID
		doc.CreatedAt = existing.CreatedAt
		s.docs[i] = doc
		return &doc, nil
	}

	doc.ID = primitive.NewObjectID()
	doc.CreatedAt = now
	s.byLink[doc.Link] = len(s.docs)
	s.docs = append(s.docs, doc)
	return &doc, nil
}

func (s *MemoryStore) Insert(ctx context.Context, doc types.NewsDocument) (*types.NewsDocument, error) {
	doc.Normalize()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &types.StoreError{Op: "insert", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byLink[doc.Link]; ok {
		return nil, &types.StoreError{Op: "insert", Err: fmt.Errorf("%w: %s", types.ErrDuplicateKey, doc.Link)}
	}

	now := s.now()
	doc.ID = primitive.NewObjectID()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.ScrapedAt.IsZero() {
		doc.ScrapedAt = now
	}
	s.byLink[doc.Link] = len(s.docs)
	s.docs = append(s.docs, doc)

	s.logger.Debug("document inserted", "link", doc.Link, "source", doc.Source)
	return &doc, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.docs)), nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.logger.Info("memory store closing", "documents", len(s.docs))
	return nil
}
