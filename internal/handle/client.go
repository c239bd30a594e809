// Package handle registers persistent identifiers with a Handle.net server
// through its JSON REST API.
package handle

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// TTL of the values written, in seconds.
	TTL = 86400

	urlIndex   = 1
	adminIndex = 100

	// AdminIndex is the index of the admin public key in the prefix handle.
	AdminIndex = 300

	// adminPermissions grants every right except list and delete-naming
	// authority on the created handle.
	adminPermissions = "011111110011"

	nonceSize = 16
)

// Registrar points handles at target URLs.
type Registrar interface {
	Register(ctx context.Context, handle, targetURL string) error
}

// Client is an authenticated session with a handle server.
type Client struct {
	httpClient *http.Client
	baseURL    string
	prefix     string
	key        *rsa.PrivateKey
	logger     *slog.Logger

	mu        sync.Mutex
	sessionID string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client, e.g. one trusting the server's
// self-signed certificate.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
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

// NewClient creates a client administering handles under prefix with the
// admin key of 300:0.NA/<prefix>.
func NewClient(baseURL, prefix string, key *rsa.PrivateKey, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid handle server URL %q", baseURL)
	}
	if prefix == "" {
		return nil, fmt.Errorf("handle prefix is required")
	}
	if key == nil {
		return nil, ErrInvalidKey
	}
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    strings.TrimRight(u.String(), "/"),
		prefix:     prefix,
		key:        key,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AdminID returns the identity the client authenticates as.
func (c *Client) AdminID() string {
	return fmt.Sprintf("%d:0.NA/%s", AdminIndex, c.prefix)
}

type handleValue struct {
	Index int       `json:"index"`
	Type  string    `json:"type"`
	Data  valueData `json:"data"`
	TTL   int       `json:"ttl,omitempty"`
}

type valueData struct {
	Format string `json:"format"`
	Value  any    `json:"value"`
}

type adminValue struct {
	Handle      string `json:"handle"`
	Index       int    `json:"index"`
	Permissions string `json:"permissions"`
}

// Register makes handle resolve to targetURL: an existing handle has its
// URL value rewritten, a new one is created with URL and admin values.
func (c *Client) Register(ctx context.Context, handle, targetURL string) error {
	if err := c.register(ctx, handle, targetURL); err != nil {
		return &RegistrationError{Handle: handle, Err: err}
	}
	c.logger.Info("handle registered", "handle", handle, "target", targetURL)
	return nil
}

func (c *Client) register(ctx context.Context, handle, targetURL string) error {
	exists, err := c.exists(ctx, handle)
	if err != nil {
		return err
	}

	urlValue := handleValue{Index: urlIndex, Type: "URL", Data: valueData{Format: "string", Value: targetURL}, TTL: TTL}
	path := "/api/handles/" + escapeHandle(handle)
	if exists {
		return c.put(ctx, path+"?index="+fmt.Sprint(urlIndex), []handleValue{urlValue})
	}
	admin := handleValue{
		Index: adminIndex,
		Type:  "HS_ADMIN",
		Data: valueData{Format: "admin", Value: adminValue{
			Handle:      "0.NA/" + c.prefix,
			Index:       AdminIndex,
			Permissions: adminPermissions,
		}},
		TTL: TTL,
	}
	return c.put(ctx, path+"?overwrite=false", []handleValue{urlValue, admin})
}

func escapeHandle(h string) string {
	parts := strings.Split(h, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func (c *Client) exists(ctx context.Context, handle string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/handles/"+escapeHandle(handle), nil)
	if err != nil {
		return false, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, fmt.Errorf("%w: resolving %s: status %d", ErrUnexpectedResponse, handle, resp.StatusCode)
}

// put writes values, authenticating first. A rejected session is
// reopened once.
func (c *Client) put(ctx context.Context, path string, values []handleValue) error {
	body, err := json.Marshal(map[string]any{"values": values})
	if err != nil {
		return err
	}
	for attempt := 0; ; attempt++ {
		session, err := c.session(ctx)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", fmt.Sprintf(`Handle sessionId="%s"`, session))

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
			return nil
		case resp.StatusCode == http.StatusUnauthorized && attempt == 0:
			c.logger.Debug("handle session rejected, reopening")
			c.mu.Lock()
			c.sessionID = ""
			c.mu.Unlock()
			continue
		}
		return fmt.Errorf("%w: status %d: %s", ErrUnexpectedResponse, resp.StatusCode, strings.TrimSpace(string(data)))
	}
}

type sessionResponse struct {
	SessionID     string `json:"sessionId"`
	Nonce         string `json:"nonce"`
	Authenticated bool   `json:"authenticated"`
	Error         string `json:"error"`
}

// session returns the current session, opening and authenticating one when
// needed.
func (c *Client) session(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID != "" {
		return c.sessionID, nil
	}

	var opened sessionResponse
	if err := c.sessionCall(ctx, http.MethodPost, "", &opened); err != nil {
		return "", err
	}
	serverNonce, err := base64.StdEncoding.DecodeString(opened.Nonce)
	if err != nil || opened.SessionID == "" {
		return "", fmt.Errorf("%w: malformed session challenge", ErrUnexpectedResponse)
	}

	clientNonce := make([]byte, nonceSize)
	if _, err := rand.Read(clientNonce); err != nil {
		return "", err
	}
	sig, err := sign(c.key, serverNonce, clientNonce)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	auth := fmt.Sprintf(`Handle sessionId="%s", id="%s", type="HS_PUBKEY", cnonce="%s", alg="SHA256", signature="%s"`,
		opened.SessionID, c.AdminID(),
		base64.StdEncoding.EncodeToString(clientNonce),
		base64.StdEncoding.EncodeToString(sig))

	var verified sessionResponse
	if err := c.sessionCall(ctx, http.MethodPut, auth, &verified); err != nil {
		return "", err
	}
	if !verified.Authenticated {
		return "", fmt.Errorf("%w: %s", ErrAuthentication, verified.Error)
	}
	c.sessionID = opened.SessionID
	c.logger.Debug("handle session opened", "admin", c.AdminID())
	return c.sessionID, nil
}

func (c *Client) sessionCall(ctx context.Context, method, auth string, out *sessionResponse) error {
	path := "/api/sessions"
	if method == http.MethodPut {
		path += "/this"
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrAuthentication, resp.StatusCode)
	default:
		return fmt.Errorf("%w: session %s: status %d", ErrUnexpectedResponse, strings.ToLower(method), resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return nil
}

// Skip is a Registrar that only logs, used when no admin key is
// configured.
type Skip struct {
	Logger *slog.Logger
}

// Register logs the handle that would have been registered.
func (s Skip) Register(_ context.Context, handle, targetURL string) error {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	l.Warn("handle registration disabled, skipping", "handle", handle, "target", targetURL)
	return nil
}
