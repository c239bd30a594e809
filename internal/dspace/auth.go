package dspace

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// refreshWindow is how close to expiry a token gets refreshed.
const refreshWindow = 5 * time.Minute

// Login opens a session: it fetches an XSRF token and posts the
// credentials, keeping the returned bearer token.
func (c *Client) Login(ctx context.Context) error {
	if c.user == "" {
		return fmt.Errorf("%w: no user configured", ErrUnauthorized)
	}
	if _, err := c.do(ctx, request{op: "status", method: http.MethodGet, path: "/api", expect: http.StatusOK, auth: authNone}); err != nil {
		return err
	}
	form := url.Values{"user": {c.user}, "password": {c.password}}
	h, err := c.do(ctx, request{
		op:          "login",
		method:      http.MethodPost,
		path:        "/api/authn/login",
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
		expect:      http.StatusOK,
		auth:        authNone,
	})
	if err != nil {
		return err
	}
	if err := c.setBearer(h.Get("Authorization")); err != nil {
		return err
	}
	c.logger.Info("logged in to repository", "url", c.baseURL, "user", c.user)
	return nil
}

// refresh trades the current token for a fresh one.
func (c *Client) refresh(ctx context.Context) error {
	h, err := c.do(ctx, request{
		op:     "refresh",
		method: http.MethodPost,
		path:   "/api/authn/login",
		expect: http.StatusOK,
		auth:   authCurrent,
	})
	if err != nil {
		return err
	}
	c.logger.Debug("refreshed repository token")
	return c.setBearer(h.Get("Authorization"))
}

func (c *Client) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	bearer, expires := c.bearer, c.expires
	c.mu.Unlock()

	if bearer == "" {
		return c.Login(ctx)
	}
	if !expires.IsZero() && c.now().Add(refreshWindow).After(expires) {
		return c.refresh(ctx)
	}
	return nil
}

// setBearer stores an "Authorization" header value and reads its expiry.
// The token signature is not checked: only the server can do that.
func (c *Client) setBearer(header string) error {
	header = strings.TrimSpace(header)
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
	if raw == "" {
		return fmt.Errorf("%w: login response carries no token", ErrUnauthorized)
	}

	var expires time.Time
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		c.logger.Debug("unable to read token expiry", "error", err)
	} else if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expires = exp.Time
	}

	c.mu.Lock()
	c.bearer = "Bearer " + raw
	c.expires = expires
	c.mu.Unlock()
	return nil
}

// Expires returns the expiry of the current token, zero when unknown.
func (c *Client) Expires() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expires
}
