// Package client is the calling-side companion of the auth service: it wraps
// an HTTP client with transparent credential refresh (single-flight) and
// double-submit CSRF handling. Several goroutines may issue calls through
// one Client concurrently; refresh coordination stays correct under that.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// ErrUnauthorized means a call still failed after one successful refresh.
// The retry is capped at one so a misbehaving server cannot loop us.
var ErrUnauthorized = errors.New("client: unauthorized")

const csrfHeader = "X-CSRF-Token"

type Client struct {
	baseURL string
	http    *http.Client

	refresher *RefreshCoordinator
	csrf      *CsrfTokenCache
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient substitutes the transport (tests). A cookie jar is added
// if the given client has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New builds a client for baseURL with its own cookie jar.
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{baseURL: strings.TrimRight(baseURL, "/")}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c.http.Jar = jar
	}
	c.refresher = NewRefreshCoordinator(c.refreshOnce)
	c.csrf = NewCsrfTokenCache(c.fetchCsrf)
	return c, nil
}

// Login establishes a session; the credential cookies land in the jar.
func (c *Client) Login(ctx context.Context, email, pass string) error {
	body, _ := json.Marshal(map[string]string{"email": email, "password": pass})
	resp, err := c.call(ctx, http.MethodPost, "/auth/login", body)
	if err != nil {
		return err
	}
	defer drainClose(resp)
	if resp.StatusCode != http.StatusOK {
		return ErrUnauthorized
	}
	return nil
}

// Get issues a read-only call. No CSRF token is ever attached.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.call(ctx, http.MethodGet, path, nil)
}

// Post issues a state-changing call with CSRF handling.
func (c *Client) Post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	return c.call(ctx, http.MethodPost, path, body)
}

// Delete issues a state-changing call with CSRF handling.
func (c *Client) Delete(ctx context.Context, path string) (*http.Response, error) {
	return c.call(ctx, http.MethodDelete, path, nil)
}

// call runs one logical API call: attach CSRF on unsafe verbs, then on a 401
// drive exactly one coordinated refresh and one retry, and on a CSRF
// rejection re-fetch the token once and retry.
func (c *Client) call(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	unsafe := method != http.MethodGet && method != http.MethodHead && method != http.MethodOptions

	resp, err := c.send(ctx, method, path, body, unsafe)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && path != "/auth/login" {
		drainClose(resp)
		if err := c.refresher.Refresh(ctx); err != nil {
			return nil, err
		}
		resp, err = c.send(ctx, method, path, body, unsafe)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			// One refresh, one retry. Still rejected: terminal.
			drainClose(resp)
			return nil, ErrUnauthorized
		}
		return resp, nil
	}

	if unsafe && isCsrfRejection(resp) {
		drainClose(resp)
		c.csrf.Invalidate()
		return c.send(ctx, method, path, body, true)
	}

	return resp, nil
}

// send builds and issues a single request. Requests are rebuilt per attempt
// so retries never reuse a consumed body.
func (c *Client) send(ctx context.Context, method, path string, body []byte, unsafe bool) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if unsafe {
		tok, err := c.csrf.Get(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set(csrfHeader, tok)
	}
	return c.http.Do(req)
}

// isCsrfRejection distinguishes a forgery rejection from a plain 403.
func isCsrfRejection(resp *http.Response) bool {
	if resp.StatusCode != http.StatusForbidden {
		return false
	}
	var payload struct {
		Code string `json:"code"`
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return false
	}
	// Restore the body for callers that still want it.
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	if err := json.Unmarshal(raw, &payload); err != nil {
		return false
	}
	return payload.Code == "CSRF_REJECTED"
}

func drainClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	_ = resp.Body.Close()
}
