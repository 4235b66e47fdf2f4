package http

import (
	"context"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dropDatabas3/tenantgate/internal/app"
	"github.com/dropDatabas3/tenantgate/internal/auth"
	"github.com/dropDatabas3/tenantgate/internal/cache"
	"github.com/dropDatabas3/tenantgate/internal/config"
	"github.com/dropDatabas3/tenantgate/internal/store/core"
)

// emptyStore satisfies app.Store with an empty dataset.
type emptyStore struct{}

func (emptyStore) Ping(context.Context) error    { return nil }
func (emptyStore) Migrate(context.Context) error { return nil }
func (emptyStore) Close()                        {}
func (emptyStore) GetUserByID(context.Context, string) (*core.User, error) {
	return nil, core.ErrNotFound
}
func (emptyStore) GetUserByEmail(context.Context, string) (*core.User, error) {
	return nil, core.ErrNotFound
}
func (emptyStore) ListUsers(context.Context, auth.ScopePredicate) ([]*core.User, error) {
	return nil, nil
}
func (emptyStore) CreateUser(_ context.Context, u *core.User) (*core.User, error) { return u, nil }
func (emptyStore) SetUserStatus(context.Context, string, string) error            { return nil }
func (emptyStore) GetRoleByID(context.Context, string) (*core.Role, error) {
	return nil, core.ErrNotFound
}
func (emptyStore) SaveRole(_ context.Context, r *core.Role) (*core.Role, error) { return r, nil }
func (emptyStore) ListRoles(context.Context) ([]*core.Role, error)              { return nil, nil }
func (emptyStore) CreateRefreshToken(context.Context, string, string, time.Time, *string) (*core.RefreshToken, error) {
	return &core.RefreshToken{}, nil
}
func (emptyStore) GetRefreshTokenByHash(context.Context, string) (*core.RefreshToken, error) {
	return nil, core.ErrNotFound
}
func (emptyStore) RevokeRefreshToken(context.Context, string) error      { return nil }
func (emptyStore) RevokeUserRefreshTokens(context.Context, string) error { return nil }

func testRouter() stdhttp.Handler {
	cfg := &config.Config{}
	cfg.Auth.Cookie.AccessName = "tg_access"
	cfg.Auth.Cookie.RefreshName = "tg_refresh"
	cfg.Auth.Cookie.CSRFName = "csrf_token"

	return NewRouter(&app.Container{
		Cfg:        cfg,
		Store:      emptyStore{},
		Cache:      cache.NewMemory(""),
		Principals: auth.NewPrincipalCache(cache.NewMemory(""), time.Minute),
	})
}

// Logout mutates an established session's state, so it sits inside the
// double-submit fence even though the other /auth entry points do not.
func TestRouter_LogoutRequiresCSRF(t *testing.T) {
	h := testRouter()

	r := httptest.NewRequest(stdhttp.MethodPost, "/auth/logout", nil)
	r.AddCookie(&stdhttp.Cookie{Name: "tg_refresh", Value: "whatever"})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != stdhttp.StatusForbidden {
		t.Fatalf("status %d, want 403 without a CSRF pair", w.Code)
	}
}

func TestRouter_LogoutPassesWithCSRFPair(t *testing.T) {
	h := testRouter()

	r := httptest.NewRequest(stdhttp.MethodPost, "/auth/logout", nil)
	r.AddCookie(&stdhttp.Cookie{Name: "csrf_token", Value: "tok-1"})
	r.Header.Set("X-CSRF-Token", "tok-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != stdhttp.StatusNoContent {
		t.Fatalf("status %d, want 204", w.Code)
	}
}

// Login and refresh run before a session exists; they stay outside the fence.
func TestRouter_LoginOutsideCSRFFence(t *testing.T) {
	h := testRouter()

	r := httptest.NewRequest(stdhttp.MethodPost, "/auth/login", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code == stdhttp.StatusForbidden {
		t.Fatal("login must not be CSRF-fenced")
	}
}

func TestRouter_RefreshOutsideCSRFFence(t *testing.T) {
	h := testRouter()

	r := httptest.NewRequest(stdhttp.MethodPost, "/auth/refresh", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code == stdhttp.StatusForbidden {
		t.Fatal("refresh must not be CSRF-fenced")
	}
}
