package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// ErrSessionExpired means the refresh endpoint explicitly rejected the
// credential. Terminal: the caller must re-authenticate.
var ErrSessionExpired = errors.New("client: session expired")

// RefreshCoordinator collapses concurrent credential refreshes into a single
// in-flight call. State machine per session: Idle -> Refreshing -> Idle.
// Callers arriving while a refresh is in flight wait on the same outcome;
// a second network call is never issued. Implemented as a mutex-guarded
// future broadcast, not ad-hoc boolean flags, so wakeups cannot be lost.
type RefreshCoordinator struct {
	mu  sync.Mutex
	cur *flight

	do func(ctx context.Context) error
}

type flight struct {
	done chan struct{}
	err  error
}

// NewRefreshCoordinator wraps the actual refresh call.
func NewRefreshCoordinator(do func(ctx context.Context) error) *RefreshCoordinator {
	return &RefreshCoordinator{do: do}
}

// Refresh performs or joins the single in-flight refresh and returns its
// outcome. Every waiter of one flight observes the same error (or nil).
// A canceled waiter detaches without disturbing the flight.
func (rc *RefreshCoordinator) Refresh(ctx context.Context) error {
	rc.mu.Lock()
	if f := rc.cur; f != nil {
		rc.mu.Unlock()
		select {
		case <-f.done:
			return f.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f := &flight{done: make(chan struct{})}
	rc.cur = f
	rc.mu.Unlock()

	f.err = rc.do(ctx)

	rc.mu.Lock()
	rc.cur = nil
	rc.mu.Unlock()
	close(f.done)

	return f.err
}

// refreshOnce is the network call behind the coordinator: POST /auth/refresh
// with no body; the refresh cookie travels via the jar. Only an explicit
// rejection maps to ErrSessionExpired; transport errors propagate as-is so
// the caller can retry without being logged out.
func (c *Client) refreshOnce(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/refresh", strings.NewReader(""))
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: refresh transport: %w", err)
	}
	defer drainClose(resp)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrSessionExpired
	default:
		return fmt.Errorf("client: refresh failed with status %d", resp.StatusCode)
	}
}
