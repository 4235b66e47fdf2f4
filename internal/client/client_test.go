package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRefreshCoordinator_CollapsesConcurrentCallers(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	rc := NewRefreshCoordinator(func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		<-release
		return nil
	})

	const waiters = 12
	var wg sync.WaitGroup
	errs := make([]error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = rc.Refresh(context.Background())
		}(i)
	}

	// Let everyone either start or join the flight, then complete it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("refresh ran %d times, want 1", n)
	}
	for i, err := range errs {
		if err != nil {
			t.Fatalf("waiter %d: %v", i, err)
		}
	}
}

func TestRefreshCoordinator_SharedFailure(t *testing.T) {
	wantErr := errors.New("backend down")
	var calls int32
	release := make(chan struct{})
	rc := NewRefreshCoordinator(func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		<-release
		return wantErr
	})

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = rc.Refresh(context.Background())
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("refresh ran %d times, want 1", n)
	}
	for i, err := range errs {
		if !errors.Is(err, wantErr) {
			t.Fatalf("waiter %d: got %v, want shared failure", i, err)
		}
	}
}

func TestRefreshCoordinator_NewFlightAfterCompletion(t *testing.T) {
	var calls int32
	rc := NewRefreshCoordinator(func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	if err := rc.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := rc.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("refresh ran %d times, want 2 (sequential calls are distinct flights)", n)
	}
}

func TestRefreshCoordinator_CanceledWaiterDetaches(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	rc := NewRefreshCoordinator(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})

	go rc.Refresh(context.Background())
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rc.Refresh(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}

	// The flight itself is unaffected by the waiter leaving.
	close(release)
	if err := rc.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
}

// authServer simulates the service side of the refresh and CSRF flows.
type authServer struct {
	mu            sync.Mutex
	refreshed     bool
	refreshCalls  int
	refreshStatus int // 0 means succeed
	apiCalls      int
	csrfFetches   int
	csrfToken     string
	wantCsrf      string
	seenCsrf      []string
}

func newAuthServer() (*authServer, *httptest.Server) {
	as := &authServer{csrfToken: "tok-1", wantCsrf: "tok-1"}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		as.mu.Lock()
		defer as.mu.Unlock()
		as.refreshCalls++
		if as.refreshStatus != 0 {
			w.WriteHeader(as.refreshStatus)
			return
		}
		as.refreshed = true
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /auth/csrf", func(w http.ResponseWriter, r *http.Request) {
		as.mu.Lock()
		defer as.mu.Unlock()
		as.csrfFetches++
		w.Header().Set("X-CSRF-Token", as.csrfToken)
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/api/widgets", func(w http.ResponseWriter, r *http.Request) {
		as.mu.Lock()
		defer as.mu.Unlock()
		as.apiCalls++
		if r.Method != http.MethodGet {
			tok := r.Header.Get("X-CSRF-Token")
			as.seenCsrf = append(as.seenCsrf, tok)
			if tok != as.wantCsrf {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"code":"CSRF_REJECTED","message":"csrf token rejected"}`))
				return
			}
		}
		if !as.refreshed {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	return as, httptest.NewServer(mux)
}

func TestClient_RefreshOn401ThenRetry(t *testing.T) {
	as, srv := newAuthServer()
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := c.Get(context.Background(), "/api/widgets")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	drainClose(resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200 after refresh", resp.StatusCode)
	}

	as.mu.Lock()
	defer as.mu.Unlock()
	if as.refreshCalls != 1 {
		t.Fatalf("refresh called %d times, want 1", as.refreshCalls)
	}
	if as.apiCalls != 2 {
		t.Fatalf("api called %d times, want 2 (original + retry)", as.apiCalls)
	}
}

func TestClient_ConcurrentCallsShareOneRefresh(t *testing.T) {
	var refreshCalls, apiCalls int32
	var refreshed atomic.Bool
	allFailed := make(chan struct{})
	var failures int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			atomic.AddInt32(&refreshCalls, 1)
			// Hold the refresh until every caller has seen its 401, plus a
			// beat for the last one to join the coordinator, so all of them
			// share one flight.
			<-allFailed
			time.Sleep(100 * time.Millisecond)
			refreshed.Store(true)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		atomic.AddInt32(&apiCalls, 1)
		if !refreshed.Load() {
			if atomic.AddInt32(&failures, 1) == 3 {
				close(allFailed)
			}
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	codes := make([]int, 3)
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := c.Get(context.Background(), "/api/widgets")
			if err != nil {
				errs[i] = err
				return
			}
			codes[i] = resp.StatusCode
			drainClose(resp)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 3; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if codes[i] != http.StatusOK {
			t.Fatalf("caller %d: status %d, want 200 after the shared refresh", i, codes[i])
		}
	}
	if n := atomic.LoadInt32(&refreshCalls); n != 1 {
		t.Fatalf("refresh called %d times, want exactly 1 across all callers", n)
	}
}

func TestClient_RetryCappedAtOne(t *testing.T) {
	// Refresh succeeds but the API keeps rejecting: the client must stop
	// after one retry instead of looping.
	var refreshCalls, apiCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			atomic.AddInt32(&refreshCalls, 1)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		atomic.AddInt32(&apiCalls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Get(context.Background(), "/api/widgets")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
	if n := atomic.LoadInt32(&refreshCalls); n != 1 {
		t.Fatalf("refresh called %d times, want exactly 1", n)
	}
	if n := atomic.LoadInt32(&apiCalls); n != 2 {
		t.Fatalf("api called %d times, want 2", n)
	}
}

func TestClient_RefreshRejectionIsSessionExpired(t *testing.T) {
	as, srv := newAuthServer()
	defer srv.Close()

	as.mu.Lock()
	as.refreshStatus = http.StatusUnauthorized
	as.mu.Unlock()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Get(context.Background(), "/api/widgets")
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("got %v, want ErrSessionExpired", err)
	}
}

func TestClient_RefreshTransportErrorIsNotSessionExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			// Kill the connection mid-flight to simulate a network failure.
			if hj, ok := w.(http.Hijacker); ok {
				conn, _, _ := hj.Hijack()
				conn.Close()
			}
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Get(context.Background(), "/api/widgets")
	if err == nil {
		t.Fatal("expected an error")
	}
	// A flaky network must not log the session out.
	if errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrUnauthorized) {
		t.Fatalf("transport failure misclassified as %v", err)
	}
}

func TestClient_CsrfOnUnsafeVerbsOnly(t *testing.T) {
	as, srv := newAuthServer()
	defer srv.Close()
	as.mu.Lock()
	as.refreshed = true // skip the 401 path
	as.mu.Unlock()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	resp, err := c.Get(ctx, "/api/widgets")
	if err != nil {
		t.Fatal(err)
	}
	drainClose(resp)

	as.mu.Lock()
	fetches := as.csrfFetches
	as.mu.Unlock()
	if fetches != 0 {
		t.Fatalf("read-only call fetched the CSRF token %d times, want 0", fetches)
	}

	for i := 0; i < 2; i++ {
		resp, err = c.Post(ctx, "/api/widgets", []byte(`{}`))
		if err != nil {
			t.Fatal(err)
		}
		drainClose(resp)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("post %d: status %d", i, resp.StatusCode)
		}
	}

	as.mu.Lock()
	defer as.mu.Unlock()
	if as.csrfFetches != 1 {
		t.Fatalf("csrf fetched %d times, want 1 (cached across calls)", as.csrfFetches)
	}
	for _, tok := range as.seenCsrf {
		if tok != "tok-1" {
			t.Fatalf("unexpected csrf token %q", tok)
		}
	}
}

func TestClient_CsrfRejectionRefetchesOnce(t *testing.T) {
	as, srv := newAuthServer()
	defer srv.Close()
	as.mu.Lock()
	as.refreshed = true
	as.mu.Unlock()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	// Prime the cache with tok-1.
	resp, err := c.Post(ctx, "/api/widgets", []byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	drainClose(resp)

	// Server rotates: the cached token is now stale.
	as.mu.Lock()
	as.csrfToken, as.wantCsrf = "tok-2", "tok-2"
	as.mu.Unlock()

	resp, err = c.Post(ctx, "/api/widgets", []byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	drainClose(resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200 after re-fetch", resp.StatusCode)
	}

	as.mu.Lock()
	defer as.mu.Unlock()
	if as.csrfFetches != 2 {
		t.Fatalf("csrf fetched %d times, want 2 (initial + after rejection)", as.csrfFetches)
	}
	want := []string{"tok-1", "tok-1", "tok-2"}
	if len(as.seenCsrf) != len(want) {
		t.Fatalf("seen tokens %v, want %v", as.seenCsrf, want)
	}
	for i := range want {
		if as.seenCsrf[i] != want[i] {
			t.Fatalf("seen tokens %v, want %v", as.seenCsrf, want)
		}
	}
}

func TestClient_PlainForbiddenNotTreatedAsCsrf(t *testing.T) {
	var csrfFetches int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/csrf":
			atomic.AddInt32(&csrfFetches, 1)
			w.Header().Set("X-CSRF-Token", "tok-1")
			w.WriteHeader(http.StatusNoContent)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"code":"PERMISSION_DENIED","message":"missing users:create"}`))
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := c.Post(context.Background(), "/api/widgets", []byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	defer drainClose(resp)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("got status %d, want the 403 passed through", resp.StatusCode)
	}
	if n := atomic.LoadInt32(&csrfFetches); n != 1 {
		t.Fatalf("csrf fetched %d times, want 1 (no re-fetch on a plain 403)", n)
	}
}
