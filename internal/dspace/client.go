// Package dspace talks to the DSpace 7 REST API of the target repository:
// session handling, the community/collection/item hierarchy, person records,
// relationships and bitstreams.
package dspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultTimeout is the default HTTP request timeout. Uploads of large
	// videos go through the same client.
	DefaultTimeout = 10 * time.Minute

	// pageSize is the number of objects requested per page.
	pageSize = 100

	xsrfHeader        = "DSPACE-XSRF-TOKEN"
	xsrfRequestHeader = "X-XSRF-TOKEN"
)

// authMode selects how a request is authenticated.
type authMode int

const (
	authSession authMode = iota // open or refresh the session first
	authNone                    // anonymous (status and login)
	authCurrent                 // current token as is (refresh)
)

// Client is a DSpace REST client bound to one repository and account.
type Client struct {
	httpClient *http.Client
	baseURL    string
	user       string
	password   string
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	xsrf    string
	bearer  string
	expires time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client. A cookie jar is added when the
// client has none.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCredentials sets the account used to log in.
func WithCredentials(user, password string) ClientOption {
	return func(c *Client) {
		c.user = user
		c.password = password
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

// NewClient creates a client for the repository served at baseURL (the
// server root, without the /api suffix).
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid repository URL %q", baseURL)
	}
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    strings.TrimRight(u.String(), "/"),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		hc := *c.httpClient
		hc.Jar = jar
		c.httpClient = &hc
	}
	return c, nil
}

// BaseURL returns the repository server root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes one API call.
type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	expect      int
	out         any
	auth        authMode
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		u = c.baseURL + path
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + query.Encode()
	}
	return u
}

// do performs r and decodes the body into r.out. Any status other than
// r.expect is returned as a *RequestError.
func (c *Client) do(ctx context.Context, r request) (http.Header, error) {
	if r.auth == authSession {
		if err := c.ensureSession(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.endpoint(r.path, r.query), r.body)
	if err != nil {
		return nil, fmt.Errorf("dspace %s: creating request: %w", r.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	c.mu.Lock()
	if c.xsrf != "" {
		req.Header.Set(xsrfRequestHeader, c.xsrf)
	}
	if c.bearer != "" && r.auth != authNone {
		req.Header.Set("Authorization", c.bearer)
	}
	c.mu.Unlock()

	c.logger.Debug("dspace request", "op", r.op, "method", r.method, "url", req.URL.String())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dspace %s: %w", r.op, err)
	}
	defer resp.Body.Close()

	if tok := resp.Header.Get(xsrfHeader); tok != "" {
		c.mu.Lock()
		c.xsrf = tok
		c.mu.Unlock()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("dspace %s: reading response: %w", r.op, err)
	}
	if resp.StatusCode != r.expect {
		return nil, newRequestError(r.op, req, r.expect, resp.StatusCode, body)
	}
	if r.out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, r.out); err != nil {
			return nil, fmt.Errorf("dspace %s: %w: %v", r.op, ErrInvalidResponse, err)
		}
	}
	return resp.Header, nil
}

func jsonBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}
