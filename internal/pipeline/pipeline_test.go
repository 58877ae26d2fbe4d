package pipeline

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/IshaanNene/newsblend/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestPipelineBasic(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimMiddleware{})

	item := &types.ScrapedItem{
		Title:       "  Hello\n   World  ",
		Link:        " https://example.com/a ",
		Description: "\tsome   text ",
	}

	result, err := p.Process(item)
	if err != nil {
		t.Fatalf("pipeline error: %v", err)
	}
	if result.Title != "Hello World" {
		t.Errorf("expected collapsed title, got %q", result.Title)
	}
	if result.Link != "https://example.com/a" {
		t.Errorf("expected trimmed link, got %q", result.Link)
	}
	if result.Description != "some text" {
		t.Errorf("expected collapsed description, got %q", result.Description)
	}
}

func TestRequiredFieldsMiddleware(t *testing.T) {
	m := &RequiredFieldsMiddleware{MinTitleLength: 5}

	tests := []struct {
		name string
		item types.ScrapedItem
		keep bool
	}{
		{"complete", types.ScrapedItem{Title: "Hello", Link: "https://example.com"}, true},
		{"no link", types.ScrapedItem{Title: "Hello"}, false},
		{"short title", types.ScrapedItem{Title: "Hi", Link: "https://example.com"}, false},
		{"umlaut title counted in runes", types.ScrapedItem{Title: "Größe", Link: "https://example.com"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := tt.item
			result, err := m.Process(&item)
			if err != nil {
				t.Fatal(err)
			}
			if (result != nil) != tt.keep {
				t.Errorf("keep = %v, want %v", result != nil, tt.keep)
			}
		})
	}
}

func TestHTMLSanitizeMiddleware(t *testing.T) {
	m := NewHTMLSanitizeMiddleware()
	item := &types.ScrapedItem{
		Title:       `<b>Rat</b> &amp; Verwaltung`,
		Description: `<p>Hello <b>World</b></p> &amp; <a href="x">link</a>`,
	}

	result, err := m.Process(item)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if result.Title != "Rat & Verwaltung" {
		t.Errorf("title = %q", result.Title)
	}
	if result.Description != "Hello World & link" {
		t.Errorf("expected 'Hello World & link', got %q", result.Description)
	}
}

func TestDefaultValueMiddleware(t *testing.T) {
	m := &DefaultValueMiddleware{Source: "Stadt Dortmund", DescriptionLength: 200}
	title := strings.Repeat("x", 250)

	result, err := m.Process(&types.ScrapedItem{Title: title, Link: "https://example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Description != strings.Repeat("x", 200)+"..." {
		t.Errorf("description has %d chars", len(result.Description))
	}
	if result.Source != "Stadt Dortmund" {
		t.Errorf("source = %q", result.Source)
	}
}

func TestDedupMiddlewareIgnoresCase(t *testing.T) {
	p := New(testLogger)
	p.Use(NewDedupMiddleware())

	items := []types.ScrapedItem{
		{Title: "first", Link: "https://Example.com/News/1", Source: "A"},
		{Title: "second", Link: "https://example.com/news/1", Source: "B"},
		{Title: "third", Link: "https://example.com/news/2", Source: "B"},
	}

	out := p.Run(items)
	if len(out) != 2 {
		t.Fatalf("expected 2 items, got %d", len(out))
	}
	if out[0].Title != "first" || out[1].Title != "third" {
		t.Errorf("unexpected survivors: %+v", out)
	}
}

type failingMiddleware struct{}

func (failingMiddleware) Name() string { return "failing" }

func (failingMiddleware) Process(*types.ScrapedItem) (*types.ScrapedItem, error) {
	return nil, errors.New("boom")
}

func TestPipelineErrorNamesStage(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimMiddleware{})
	p.Use(failingMiddleware{})

	_, err := p.Process(&types.ScrapedItem{Link: "https://example.com/x"})
	var pe *types.PipelineError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PipelineError, got %v", err)
	}
	if pe.Stage != "failing" || pe.Link != "https://example.com/x" {
		t.Errorf("unexpected error fields: %+v", pe)
	}

	if out := p.Run([]types.ScrapedItem{{Link: "https://example.com/y"}}); len(out) != 0 {
		t.Errorf("failed items should be dropped, got %d", len(out))
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("Grüße aus Dortmund", 5); got != "Grüße" {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate = %q", got)
	}
}
