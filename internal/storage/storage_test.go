package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/newsblend/internal/config"
	"github.com/IshaanNene/newsblend/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newDoc(link string, date time.Time) types.NewsDocument {
	return types.NewsDocument{
		Title:  "Title for " + link,
		Link:   link,
		Source: "Stadt Dortmund",
		Date:   date,
	}
}

// storeFactory returns an empty store and a link prefix unique to the run.
type storeFactory func(t *testing.T) (NewsStore, string)

func memoryFactory(t *testing.T) (NewsStore, string) {
	return NewMemoryStore(testLogger), "https://news.example/"
}

func mongoFactory(t *testing.T) (NewsStore, string) {
	uri := os.Getenv("NEWSBLEND_TEST_MONGODB_URI")
	if uri == "" || testing.Short() {
		t.Skip("NEWSBLEND_TEST_MONGODB_URI not set")
	}
	cfg := config.DefaultConfig().Mongo
	cfg.URI = uri
	cfg.Database = "newsblend_test"
	cfg.Collection = "news_" + uuid.NewString()

	s, err := NewMongoStore(context.Background(), &cfg, testLogger)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		ctx := context.Background()
		_ = s.collection.Drop(ctx)
		_ = s.Close(ctx)
	})
	return s, "https://news.example/"
}

func forEachStore(t *testing.T, fn func(t *testing.T, s NewsStore, prefix string)) {
	factories := map[string]storeFactory{
		"memory":  memoryFactory,
		"mongodb": mongoFactory,
	}
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			s, prefix := factory(t)
			fn(t, s, prefix)
		})
	}
}

func TestUpsertByLinkIsIdempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, s NewsStore, prefix string) {
		ctx := context.Background()
		link := prefix + "a"
		date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

		first, err := s.UpsertByLink(ctx, newDoc(link, date))
		if err != nil {
			t.Fatalf("first upsert: %v", err)
		}

		updated := newDoc(link, date)
		updated.Title = "Updated title"
		updated.ScrapedAt = time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)
		second, err := s.UpsertByLink(ctx, updated)
		if err != nil {
			t.Fatalf("second upsert: %v", err)
		}

		n, err := s.Count(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Fatalf("expected 1 document after repeated upsert, got %d", n)
		}
		if second.ID != first.ID {
			t.Errorf("upsert changed the document id")
		}
		if second.Title != "Updated title" {
			t.Errorf("title = %q", second.Title)
		}
		if !second.ScrapedAt.Equal(updated.ScrapedAt) {
			t.Errorf("scrapedAt not refreshed: %s", second.ScrapedAt)
		}
		if !second.CreatedAt.Equal(first.CreatedAt) {
			t.Errorf("createdAt changed on update")
		}
	})
}

func TestUpsertRejectsIncompleteDocument(t *testing.T) {
	forEachStore(t, func(t *testing.T, s NewsStore, prefix string) {
		_, err := s.UpsertByLink(context.Background(), types.NewsDocument{Link: prefix + "x"})
		if !types.IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestInsertValidation(t *testing.T) {
	forEachStore(t, func(t *testing.T, s NewsStore, prefix string) {
		ctx := context.Background()
		doc := newDoc(prefix+"v", time.Now())
		doc.Title = "   "
		doc.Source = ""

		_, err := s.Insert(ctx, doc)
		var ve *types.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if len(ve.Fields) != 2 || ve.Fields[0] != "title" || ve.Fields[1] != "source" {
			t.Errorf("fields = %v", ve.Fields)
		}

		if n, _ := s.Count(ctx); n != 0 {
			t.Errorf("invalid insert changed the count to %d", n)
		}
	})
}

func TestInsertDuplicateLink(t *testing.T) {
	forEachStore(t, func(t *testing.T, s NewsStore, prefix string) {
		ctx := context.Background()
		doc := newDoc(prefix+"dup", time.Now().UTC())

		stored, err := s.Insert(ctx, doc)
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		if stored.ID.IsZero() || stored.CreatedAt.IsZero() || stored.ScrapedAt.IsZero() {
			t.Errorf("stored document missing generated fields: %+v", stored)
		}

		_, err = s.Insert(ctx, doc)
		if !errors.Is(err, types.ErrDuplicateKey) {
			t.Fatalf("expected ErrDuplicateKey, got %v", err)
		}
	})
}

func TestFindRecentOrdersByDateDesc(t *testing.T) {
	forEachStore(t, func(t *testing.T, s NewsStore, prefix string) {
		ctx := context.Background()
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		for _, offset := range []int{3, 1, 4, 2} {
			link := fmt.Sprintf("%s%d", prefix, offset)
			if _, err := s.UpsertByLink(ctx, newDoc(link, base.AddDate(0, 0, offset))); err != nil {
				t.Fatal(err)
			}
		}

		docs, err := s.FindRecent(ctx, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(docs) != 4 {
			t.Fatalf("expected 4 documents, got %d", len(docs))
		}
		for i := 1; i < len(docs); i++ {
			if docs[i].Date.After(docs[i-1].Date) {
				t.Errorf("documents not sorted by date desc at %d", i)
			}
		}

		limited, err := s.FindRecent(ctx, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(limited) != 2 || limited[0].Link != prefix+"4" {
			t.Errorf("limited = %+v", limited)
		}
	})
}

func TestFindPage(t *testing.T) {
	forEachStore(t, func(t *testing.T, s NewsStore, prefix string) {
		ctx := context.Background()
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := 1; i <= 25; i++ {
			link := fmt.Sprintf("%s%02d", prefix, i)
			// Newest first: item 01 has the latest date.
			if _, err := s.UpsertByLink(ctx, newDoc(link, base.AddDate(0, 0, 100-i))); err != nil {
				t.Fatal(err)
			}
		}

		docs, total, err := s.FindPage(ctx, 2, 10)
		if err != nil {
			t.Fatal(err)
		}
		if total != 25 {
			t.Errorf("total = %d", total)
		}
		if len(docs) != 10 {
			t.Fatalf("expected 10 docs, got %d", len(docs))
		}
		if docs[0].Link != prefix+"11" || docs[9].Link != prefix+"20" {
			t.Errorf("page 2 = %s..%s", docs[0].Link, docs[9].Link)
		}

		docs, _, err = s.FindPage(ctx, 3, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(docs) != 5 {
			t.Errorf("last page has %d docs", len(docs))
		}

		docs, _, err = s.FindPage(ctx, 9, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(docs) != 0 {
			t.Errorf("page past the end has %d docs", len(docs))
		}

		docs, total, err = s.FindPage(ctx, math.MaxInt/3+2, 3)
		if err != nil {
			t.Fatal(err)
		}
		if len(docs) != 0 || total != 25 {
			t.Errorf("huge page = %d docs, total %d", len(docs), total)
		}
	})
}

func TestMemoryStoreConcurrentUpserts(t *testing.T) {
	s := NewMemoryStore(testLogger)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			link := fmt.Sprintf("https://news.example/%d", i%10)
			if _, err := s.UpsertByLink(ctx, newDoc(link, time.Now())); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	if n, _ := s.Count(ctx); n != 10 {
		t.Errorf("expected 10 unique links, got %d", n)
	}
}
