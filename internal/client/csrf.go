package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// CsrfTokenCache holds the double-submit token: fetched once on the first
// state-changing call, reused until a forgery rejection invalidates it.
// Read-only calls never touch it. The mutex is held across the fetch so
// concurrent first callers share one network round trip.
type CsrfTokenCache struct {
	mu    sync.Mutex
	token string

	fetch func(ctx context.Context) (string, error)
}

func NewCsrfTokenCache(fetch func(ctx context.Context) (string, error)) *CsrfTokenCache {
	return &CsrfTokenCache{fetch: fetch}
}

// Get returns the cached token, fetching it first if absent.
func (cc *CsrfTokenCache) Get(ctx context.Context) (string, error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.token != "" {
		return cc.token, nil
	}
	tok, err := cc.fetch(ctx)
	if err != nil {
		return "", err
	}
	cc.token = tok
	return tok, nil
}

// Invalidate clears the token so the next state-changing call re-fetches.
func (cc *CsrfTokenCache) Invalidate() {
	cc.mu.Lock()
	cc.token = ""
	cc.mu.Unlock()
}

// fetchCsrf is the network call behind the cache: GET /auth/csrf, token in
// the X-CSRF-Token response header; the matching cookie lands in the jar.
func (c *Client) fetchCsrf(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/csrf", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer drainClose(resp)

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("client: csrf fetch failed with status %d", resp.StatusCode)
	}
	tok := resp.Header.Get("X-CSRF-Token")
	if tok == "" {
		return "", errors.New("client: csrf response missing token header")
	}
	return tok, nil
}
