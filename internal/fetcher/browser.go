package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/newsblend/internal/config"
	"github.com/IshaanNene/newsblend/internal/types"
)

// BrowserFetcher renders pages in headless Chromium via Rod. It is used for
// sources whose news listing is built client-side. The browser is launched
// on first use.
type BrowserFetcher struct {
	timeout    time.Duration
	userAgents []string
	logger     *slog.Logger

	once    sync.Once
	browser *rod.Browser
	initErr error
}

// NewBrowserFetcher creates a headless browser fetcher.
func NewBrowserFetcher(cfg *config.ScraperConfig, logger *slog.Logger) *BrowserFetcher {
	return &BrowserFetcher{
		timeout:    cfg.Timeout,
		userAgents: cfg.UserAgents,
		logger:     logger.With("component", "browser_fetcher"),
	}
}

// launch starts a Chromium instance with stealth-friendly flags.
func (bf *BrowserFetcher) launch() error {
	bf.once.Do(func() {
		l := launcher.New().
			Headless(true).
			Set("disable-gpu").
			Set("disable-dev-shm-usage").
			Set("no-sandbox").
			Set("disable-blink-features", "AutomationControlled")

		controlURL, err := l.Launch()
		if err != nil {
			bf.initErr = fmt.Errorf("launch browser: %w", err)
			return
		}

		browser := rod.New().ControlURL(controlURL)
		if err := browser.Connect(); err != nil {
			bf.initErr = fmt.Errorf("connect browser: %w", err)
			return
		}
		bf.browser = browser
		bf.logger.Info("browser fetcher ready")
	})
	return bf.initErr
}

// Fetch navigates to a URL and returns the rendered page content.
func (bf *BrowserFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	if err := bf.launch(); err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}

	start := time.Now()

	page, err := stealth.Page(bf.browser)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: fmt.Errorf("stealth page: %w", err), Retryable: true}
	}
	defer func() { _ = page.Close() }()

	if len(bf.userAgents) > 0 {
		err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: bf.userAgents[0]})
		if err != nil {
			bf.logger.Warn("failed to set user agent", "error", err)
		}
	}

	timeout := bf.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	page = page.Context(ctx).Timeout(timeout)

	if err := page.Navigate(req.URLString()); err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}
	if err := page.WaitStable(300 * time.Millisecond); err != nil {
		bf.logger.Warn("page stability timeout, continuing", "url", req.URLString(), "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}

	finalURL := req.URLString()
	if info, err := page.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	duration := time.Since(start)
	bf.logger.Debug("browser fetch complete",
		"url", req.URLString(),
		"final_url", finalURL,
		"size", len(html),
		"duration", duration,
	)

	// Rod does not expose the document status code; a rendered page is 200.
	return types.NewBrowserResponse(req, 200, []byte(html), finalURL, duration), nil
}

// Close shuts down the browser if it was launched.
func (bf *BrowserFetcher) Close() error {
	if bf.browser != nil {
		return bf.browser.Close()
	}
	return nil
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return "browser"
}
