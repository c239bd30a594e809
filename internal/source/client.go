package source

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

	gocache "github.com/patrickmn/go-cache"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultUserAgent identifies the migrator to the source site.
	DefaultUserAgent = "sdmigrate/1.0"

	// maxBodyBytes caps memoized JSON/HTML bodies. Documents are streamed.
	maxBodyBytes = 32 << 20

	// pageSize is the per_page value used for WordPress collection listings.
	pageSize = 100
)

// Client is a paced, memoizing HTTP client for the source site. Every body
// read through it is kept in memory until Reload so each source node is
// fetched once per run.
type Client struct {
	httpClient *http.Client
	pacer      *Pacer
	cache      *gocache.Cache
	baseURL    *url.URL
	userAgent  string
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithPacer sets the pacer shared by every source fetch.
func WithPacer(p *Pacer) ClientOption {
	return func(c *Client) {
		c.pacer = p
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for the site at baseURL. Only the scheme and
// host of baseURL are used.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid source URL %q", baseURL)
	}

	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		cache:      gocache.New(gocache.NoExpiration, 0),
		baseURL:    &url.URL{Scheme: u.Scheme, Host: u.Host},
		userAgent:  DefaultUserAgent,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pacer == nil {
		c.pacer = NewPacer(0, c.userAgent, c.httpClient, c.logger)
	}
	return c, nil
}

// BaseURL returns the scheme and host of the source site.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Resolve makes path absolute against the site root.
func (c *Client) Resolve(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return c.baseURL.String() + path
	}
	return c.baseURL.ResolveReference(ref).String()
}

// Reload drops every memoized body.
func (c *Client) Reload() {
	c.cache.Flush()
}

// Get returns the body at rawURL, fetching it on first use.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	body, _, err := c.get(ctx, rawURL)
	return body, err
}

type cachedResponse struct {
	body   []byte
	header http.Header
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, http.Header, error) {
	if v, ok := c.cache.Get(rawURL); ok {
		cached := v.(cachedResponse)
		return cached.body, cached.header, nil
	}

	resp, err := c.do(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, &FetchError{URL: rawURL, Err: fmt.Errorf("reading body: %w", err)}
	}
	c.cache.Set(rawURL, cachedResponse{body: body, header: resp.Header.Clone()}, gocache.NoExpiration)
	return body, resp.Header, nil
}

// Open streams the resource at rawURL without memoizing it. The caller
// closes the returned body.
func (c *Client) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := c.pacer.Wait(ctx, rawURL); err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug("fetching source", "url", rawURL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: ErrNotFound}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	return resp, nil
}

// getJSON decodes the body at rawURL into v.
func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	body, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &FetchError{URL: rawURL, Err: fmt.Errorf("%w: %v", ErrInvalidResponse, err)}
	}
	return nil
}

// listJSON reads every page of a WordPress collection listing. The pages
// are appended in order.
func listJSON[T any](ctx context.Context, c *Client, rawURL string) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		pageURL, err := withQuery(rawURL, map[string]string{
			"per_page": strconv.Itoa(pageSize),
			"page":     strconv.Itoa(page),
		})
		if err != nil {
			return nil, &FetchError{URL: rawURL, Err: err}
		}

		body, header, err := c.get(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		var items []T
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, &FetchError{URL: pageURL, Err: fmt.Errorf("%w: %v", ErrInvalidResponse, err)}
		}
		all = append(all, items...)

		total, _ := strconv.Atoi(header.Get("X-WP-TotalPages"))
		if page >= total || len(items) == 0 {
			return all, nil
		}
	}
}

func withQuery(rawURL string, params map[string]string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
