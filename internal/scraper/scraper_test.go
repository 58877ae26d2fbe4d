package scraper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/IshaanNene/newsblend/internal/config"
	"github.com/IshaanNene/newsblend/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var fixedNow = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

const structuredPage = `<html><body>
<div class="news-list-item">
  <h3>  Neue Radwege in der Innenstadt  </h3>
  <a href="/de/news/radwege.html">mehr</a>
  <span class="date">15.03.2025</span>
  <p>Die Stadt baut  drei neue Radwege.</p>
  <img src="/img/rad.jpg">
</div>
<div class="news-list-item">
  <h3>Kurz</h3>
  <a href="/de/news/kurz.html">mehr</a>
</div>
<div class="news-list-item">
  <h3>Ohne Link aber lang genug</h3>
</div>
<div class="news-list-item">
  <h2>Stadtfest im Westfalenpark</h2>
  <a href="https://other.example/fest">Details</a>
  <time datetime="2025-03-20T09:30:00Z">20. März</time>
</div>
</body></html>`

const fallbackPage = `<html><body>
<ul>
  <li><a href="/news/123">A sufficiently long headline text</a></li>
  <li><a href="/about">About this website and more</a></li>
  <li><a href="/news/9">Short</a></li>
</ul>
</body></html>`

func newTestScraper(t *testing.T, sources []Source, opts ...Option) *Scraper {
	t.Helper()
	cfg := config.DefaultConfig().Scraper
	cfg.RatePerSecond = 0
	cfg.Timeout = 2 * time.Second
	opts = append([]Option{WithSources(sources...), WithClock(func() time.Time { return fixedNow })}, opts...)
	s := New(&cfg, testLogger, opts...)
	t.Cleanup(func() { s.Close() })
	return s
}

func serve(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScrapeStructuredListing(t *testing.T) {
	srv := serve(t, map[string]string{"/list": structuredPage})
	src := Source{Name: "Stadt Dortmund", URL: srv.URL + "/list", Base: srv.URL}
	s := newTestScraper(t, []Source{src})

	items, err := s.ScrapeSource(context.Background(), src)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}

	want := []types.ScrapedItem{
		{
			Title:       "Neue Radwege in der Innenstadt",
			Link:        srv.URL + "/de/news/radwege.html",
			Description: "Die Stadt baut drei neue Radwege.",
			Date:        time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
			Source:      "Stadt Dortmund",
			ImageURL:    srv.URL + "/img/rad.jpg",
		},
		{
			Title:       "Stadtfest im Westfalenpark",
			Link:        "https://other.example/fest",
			Description: "Stadtfest im Westfalenpark...",
			Date:        time.Date(2025, 3, 20, 9, 30, 0, 0, time.UTC),
			Source:      "Stadt Dortmund",
		},
	}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestScrapeFallsBackToAnchors(t *testing.T) {
	srv := serve(t, map[string]string{"/list": fallbackPage})
	src := Source{Name: "Fallback", URL: srv.URL + "/list", Base: srv.URL}
	s := newTestScraper(t, []Source{src})

	items := s.ScrapeAll(context.Background())
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d: %+v", len(items), items)
	}
	got := items[0]
	if got.Link != srv.URL+"/news/123" {
		t.Errorf("link = %q", got.Link)
	}
	if got.Title != "A sufficiently long headline text" || got.Description != got.Title {
		t.Errorf("unexpected item %+v", got)
	}
	if !got.Date.Equal(fixedNow) {
		t.Errorf("date = %s, want scrape time", got.Date)
	}
}

func TestScrapeAllDedupsAcrossSources(t *testing.T) {
	pageA := `<article><h2>Gemeinsame Meldung</h2><a href="https://shared.example/News/1">x</a></article>`
	pageB := `<article><h2>Gemeinsame Meldung (Kopie)</h2><a href="https://shared.example/news/1">x</a></article>
<article><h2>Eigene Meldung B</h2><a href="https://b.example/2">x</a></article>`
	srv := serve(t, map[string]string{"/a": pageA, "/b": pageB})

	s := newTestScraper(t, []Source{
		{Name: "A", URL: srv.URL + "/a", Base: srv.URL},
		{Name: "B", URL: srv.URL + "/b", Base: srv.URL},
	})

	items := s.ScrapeAll(context.Background())
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d: %+v", len(items), items)
	}
	if items[0].Source != "A" || items[0].Title != "Gemeinsame Meldung" {
		t.Errorf("first occurrence should win, got %+v", items[0])
	}
	if items[1].Link != "https://b.example/2" {
		t.Errorf("second item = %+v", items[1])
	}
}

func TestFailingSourceContributesNothing(t *testing.T) {
	srv := serve(t, map[string]string{"/ok": fallbackPage})
	broken := Source{Name: "Broken", URL: srv.URL + "/missing", Base: srv.URL}
	s := newTestScraper(t, []Source{
		broken,
		{Name: "Working", URL: srv.URL + "/ok", Base: srv.URL},
	})

	items := s.ScrapeAll(context.Background())
	if len(items) != 1 || items[0].Source != "Working" {
		t.Fatalf("expected only the working source's item, got %+v", items)
	}

	_, err := s.ScrapeSource(context.Background(), broken)
	var se *types.ScrapeSourceError
	if !errors.As(err, &se) {
		t.Fatalf("expected ScrapeSourceError, got %v", err)
	}
	var fe *types.FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusNotFound {
		t.Errorf("expected wrapped 404 FetchError, got %v", err)
	}
}

func TestUnreachableSourceYieldsZero(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := newTestScraper(t, []Source{{Name: "Down", URL: url, Base: url}})
	if items := s.ScrapeAll(context.Background()); len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
}

type stubFetcher struct {
	body  string
	calls int
}

func (f *stubFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	f.calls++
	return types.NewBrowserResponse(req, http.StatusOK, []byte(f.body), req.URLString(), time.Millisecond), nil
}

func (f *stubFetcher) Close() error { return nil }
func (f *stubFetcher) Type() string { return "stub" }

func TestBrowserSourceUsesBrowserFetcher(t *testing.T) {
	browser := &stubFetcher{body: fallbackPage}
	src := Source{Name: "Rendered", URL: "https://rendered.example/list", Base: "https://rendered.example", Fetcher: FetcherBrowser}
	s := newTestScraper(t, []Source{src}, WithBrowserFetcher(browser))

	items := s.ScrapeAll(context.Background())
	if browser.calls != 1 {
		t.Errorf("browser fetcher calls = %d", browser.calls)
	}
	if len(items) != 1 || items[0].Link != "https://rendered.example/news/123" {
		t.Errorf("unexpected items %+v", items)
	}
}

func TestUnknownFetcherFailsSource(t *testing.T) {
	s := newTestScraper(t, nil)
	_, err := s.ScrapeSource(context.Background(), Source{Name: "X", URL: "https://x.example", Fetcher: "curl"})
	if err == nil {
		t.Fatal("expected error for unknown fetcher")
	}
}

func TestPageResolve(t *testing.T) {
	p := NewPage(nil, Source{Base: "https://www.dortmund.de"}, "", fixedNow)
	tests := []struct {
		href string
		want string
	}{
		{"/news/123", "https://www.dortmund.de/news/123"},
		{"https://a.example/x", "https://a.example/x"},
		{"#top", ""},
		{"javascript:void(0)", ""},
		{"mailto:presse@dortmund.de", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := p.Resolve(tt.href); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.href, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		text string
		want time.Time
	}{
		{"15.03.2025", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)},
		{" 01.12.2024 14:30 Uhr ", time.Date(2024, 12, 1, 14, 30, 0, 0, time.UTC)},
		{"2025-02-10", time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)},
		{"", fixedNow},
		{"gestern", fixedNow},
	}
	for _, tt := range tests {
		if got := ParseDate(tt.text, fixedNow); !got.Equal(tt.want) {
			t.Errorf("ParseDate(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}
