// Package wordpress fetches the post collection of the upstream WordPress
// REST API and memoizes it for a fixed TTL.
package wordpress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/IshaanNene/newsblend/internal/config"
	"github.com/IshaanNene/newsblend/internal/fetcher"
	"github.com/IshaanNene/newsblend/internal/types"
)

// postFields is the field projection requested from the posts endpoint.
const postFields = "id,title,content,excerpt,date,slug,featured_media,link"

// Client talks to the WordPress REST API.
type Client struct {
	baseURL string
	perPage int
	http    *http.Client
	cache   *Cache
	group   singleflight.Group
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithClock sets the clock used for cache expiry.
func WithClock(clock Clock) Option {
	return func(c *Client) { c.cache.clock = clock }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a WordPress client.
func NewClient(cfg *config.WordPressConfig, logger *slog.Logger, opts ...Option) *Client {
	perPage := cfg.PerPage
	if perPage <= 0 || perPage > 100 {
		perPage = 100
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		perPage: perPage,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:              http.ProxyFromEnvironment,
				DisableCompression: true,
			},
		},
		cache:  NewCache(cfg.CacheTTL, SystemClock()),
		logger: logger.With("component", "wordpress_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured API base.
func (c *Client) BaseURL() string { return c.baseURL }

// PostsURL returns the bulk posts request URL.
func (c *Client) PostsURL() string {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(c.perPage))
	q.Set("_fields", postFields)
	return c.baseURL + "/posts?" + q.Encode()
}

// FetchPosts returns the upstream post collection, served from cache while
// the snapshot is fresh. Failures are returned as *types.UpstreamError and
// never fall back to a stale snapshot.
func (c *Client) FetchPosts(ctx context.Context) ([]types.WPPost, error) {
	posts, _, err := c.fetch(ctx)
	return posts, err
}

func (c *Client) fetch(ctx context.Context) ([]types.WPPost, bool, error) {
	if posts, age, ok := c.cache.Get(); ok {
		c.logger.Debug("serving posts from cache", "count", len(posts), "age", age)
		return posts, true, nil
	}

	// The shared request outlives any single caller; each caller waits on
	// its own context, and http.Client.Timeout still bounds the request.
	ch := c.group.DoChan("posts", func() (any, error) {
		posts, err := c.request(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.cache.Set(posts)
		return posts, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, &types.UpstreamError{URL: c.PostsURL(), Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.([]types.WPPost), false, nil
	}
}

func (c *Client) request(ctx context.Context) ([]types.WPPost, error) {
	reqURL := c.PostsURL()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &types.UpstreamError{URL: reqURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, br")
	req.Header.Set("User-Agent", "newsblend/"+config.Version)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &types.UpstreamError{URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &types.UpstreamError{
			URL:        reqURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	reader, err := fetcher.DecompressReader(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return nil, &types.UpstreamError{URL: reqURL, StatusCode: resp.StatusCode, Err: err}
	}
	defer reader.Close()

	var posts []types.WPPost
	if err := json.NewDecoder(reader).Decode(&posts); err != nil {
		return nil, &types.UpstreamError{URL: reqURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode posts: %w", err)}
	}

	c.logger.Debug("fetched posts", "count", len(posts), "duration", time.Since(start))
	return posts, nil
}

// Inspection is the raw view served by the debug endpoint.
type Inspection struct {
	BaseURL    string         `json:"baseUrl"`
	RequestURL string         `json:"requestUrl"`
	Cached     bool           `json:"cached"`
	TotalPosts int            `json:"totalPosts"`
	Posts      []types.WPPost `json:"posts"`
}

// Inspect fetches the posts and reports where they came from.
func (c *Client) Inspect(ctx context.Context) (*Inspection, error) {
	posts, cached, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	return &Inspection{
		BaseURL:    c.baseURL,
		RequestURL: c.PostsURL(),
		Cached:     cached,
		TotalPosts: len(posts),
		Posts:      posts,
	}, nil
}
