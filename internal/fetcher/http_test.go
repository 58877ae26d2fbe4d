package fetcher

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/newsblend/internal/config"
	"github.com/IshaanNene/newsblend/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

const testPage = `<html><body><h1>Aktuelle Nachrichten</h1></body></html>`

func newTestFetcher() *HTTPFetcher {
	cfg := config.DefaultConfig().Scraper
	cfg.Timeout = 2 * time.Second
	return NewHTTPFetcher(&cfg, testLogger)
}

func TestHTTPFetcherEncodings(t *testing.T) {
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	zw.Write([]byte(testPage))
	zw.Close()

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	bw.Write([]byte(testPage))
	bw.Close()

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"identity", "", []byte(testPage)},
		{"gzip", "gzip", gz.Bytes()},
		{"brotli", "br", br.Bytes()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.encoding != "" {
					w.Header().Set("Content-Encoding", tt.encoding)
				}
				w.Header().Set("Content-Type", "text/html")
				w.Write(tt.body)
			}))
			defer srv.Close()

			f := newTestFetcher()
			defer f.Close()

			req, err := types.NewRequest(srv.URL)
			if err != nil {
				t.Fatal(err)
			}
			resp, err := f.Fetch(context.Background(), req)
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}
			if string(resp.Body) != testPage {
				t.Errorf("body = %q", resp.Body)
			}

			doc, err := resp.Document()
			if err != nil {
				t.Fatalf("document: %v", err)
			}
			if got := doc.Find("h1").Text(); got != "Aktuelle Nachrichten" {
				t.Errorf("h1 = %q", got)
			}
		})
	}
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestDecompressReaderClose(t *testing.T) {
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	zw.Write([]byte(testPage))
	zw.Close()

	var df bytes.Buffer
	fw, _ := flate.NewWriter(&df, flate.DefaultCompression)
	fw.Write([]byte(testPage))
	fw.Close()

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	bw.Write([]byte(testPage))
	bw.Close()

	tests := []struct {
		encoding string
		body     []byte
	}{
		{"", []byte(testPage)},
		{"gzip", gz.Bytes()},
		{"deflate", df.Bytes()},
		{"br", br.Bytes()},
	}

	for _, tt := range tests {
		src := &closeTracker{Reader: bytes.NewReader(tt.body)}
		rc, err := DecompressReader(tt.encoding, src)
		if err != nil {
			t.Fatalf("%q: %v", tt.encoding, err)
		}
		got, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("%q: read: %v", tt.encoding, err)
		}
		if string(got) != testPage {
			t.Errorf("%q: body = %q", tt.encoding, got)
		}
		if err := rc.Close(); err != nil {
			t.Errorf("%q: close: %v", tt.encoding, err)
		}
		if src.closed {
			t.Errorf("%q: closing the decompressor closed the source", tt.encoding)
		}
	}

	if _, err := DecompressReader("gzip", strings.NewReader("not gzip")); err == nil {
		t.Error("expected error for invalid gzip header")
	}
}

func TestHTTPFetcherSendsBrowserUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(testPage))
	}))
	defer srv.Close()

	f := newTestFetcher()
	req, _ := types.NewRequest(srv.URL)
	if _, err := f.Fetch(context.Background(), req); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.HasPrefix(gotUA, "Mozilla/5.0") {
		t.Errorf("expected browser user agent, got %q", gotUA)
	}
}

func TestHTTPFetcherNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher()
	req, _ := types.NewRequest(srv.URL)
	_, err := f.Fetch(context.Background(), req)

	var fe *types.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", fe.StatusCode)
	}
	if fe.IsRetryable() {
		t.Error("404 should not be retryable")
	}
}

func TestHTTPFetcherTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f := newTestFetcher()
	req, _ := types.NewRequest(srv.URL)
	req.Timeout = 50 * time.Millisecond

	if _, err := f.Fetch(context.Background(), req); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestHTTPFetcherKeepsSessionCookies(t *testing.T) {
	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err == nil {
			gotCookie = c.Value
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		w.Write([]byte(testPage))
	}))
	defer srv.Close()

	f := newTestFetcher()
	for i := 0; i < 2; i++ {
		req, _ := types.NewRequest(srv.URL)
		if _, err := f.Fetch(context.Background(), req); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if gotCookie != "abc" {
		t.Errorf("second request cookie = %q, want abc", gotCookie)
	}
}
