package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/tenantgate/internal/app"
	"github.com/dropDatabas3/tenantgate/internal/auth"
	"github.com/dropDatabas3/tenantgate/internal/cache"
	"github.com/dropDatabas3/tenantgate/internal/config"
	jwtx "github.com/dropDatabas3/tenantgate/internal/jwt"
	"github.com/dropDatabas3/tenantgate/internal/security/password"
	tokens "github.com/dropDatabas3/tenantgate/internal/security/token"
	"github.com/dropDatabas3/tenantgate/internal/store/core"
)

const (
	testIssuer   = "https://auth.example.test"
	testPassword = "s3cret-pass"
)

var errStoreDown = errors.New("dial tcp: connection refused")

// memStore is an in-memory app.Store for handler tests. Setting down makes
// every call fail like a lost connection.
type memStore struct {
	mu     sync.Mutex
	down   bool
	users  map[string]*core.User
	roles  map[string]*core.Role
	tokens map[string]*core.RefreshToken // by id
	byHash map[string]*core.RefreshToken
	nextID int

	revokedAll []string // user ids passed to RevokeUserRefreshTokens
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[string]*core.User{},
		roles:  map[string]*core.Role{},
		tokens: map[string]*core.RefreshToken{},
		byHash: map[string]*core.RefreshToken{},
	}
}

func (s *memStore) Ping(ctx context.Context) error {
	if s.down {
		return errStoreDown
	}
	return nil
}
func (s *memStore) Migrate(ctx context.Context) error { return nil }
func (s *memStore) Close()                            {}

func (s *memStore) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, errStoreDown
	}
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, core.ErrNotFound
}

func (s *memStore) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, errStoreDown
	}
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *memStore) ListUsers(ctx context.Context, pred auth.ScopePredicate) ([]*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, errStoreDown
	}
	if pred.Kind == auth.PredicateDenyAll {
		return nil, nil
	}
	out := make([]*core.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *memStore) CreateUser(ctx context.Context, u *core.User) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, errStoreDown
	}
	for _, ex := range s.users {
		if ex.Email == u.Email {
			return nil, core.ErrConflict
		}
	}
	s.nextID++
	cp := *u
	cp.ID = fmt.Sprintf("u-%d", s.nextID)
	s.users[cp.ID] = &cp
	return &cp, nil
}

func (s *memStore) SetUserStatus(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return errStoreDown
	}
	u, ok := s.users[id]
	if !ok {
		return core.ErrNotFound
	}
	u.Status = status
	return nil
}

func (s *memStore) GetRoleByID(ctx context.Context, id string) (*core.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, errStoreDown
	}
	if r, ok := s.roles[id]; ok {
		return r, nil
	}
	return nil, core.ErrNotFound
}

func (s *memStore) SaveRole(ctx context.Context, r *core.Role) (*core.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, errStoreDown
	}
	if err := auth.ValidatePermissions(r.Permissions); err != nil {
		return nil, err
	}
	s.roles[r.ID] = r
	return r, nil
}

func (s *memStore) ListRoles(ctx context.Context) ([]*core.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, errStoreDown
	}
	out := make([]*core.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, r)
	}
	return out, nil
}

func (s *memStore) CreateRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time, replacedFrom *string) (*core.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, errStoreDown
	}
	s.nextID++
	rt := &core.RefreshToken{
		ID:        fmt.Sprintf("rt-%d", s.nextID),
		UserID:    userID,
		TokenHash: tokenHash,
		IssuedAt:  time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
	s.tokens[rt.ID] = rt
	s.byHash[tokenHash] = rt
	if replacedFrom != nil {
		if old, ok := s.tokens[*replacedFrom]; ok {
			old.ReplacedBy = &rt.ID
		}
	}
	return rt, nil
}

func (s *memStore) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*core.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, errStoreDown
	}
	if rt, ok := s.byHash[tokenHash]; ok {
		cp := *rt
		return &cp, nil
	}
	return nil, core.ErrNotFound
}

func (s *memStore) RevokeRefreshToken(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return errStoreDown
	}
	if rt, ok := s.tokens[id]; ok && rt.RevokedAt == nil {
		now := time.Now().UTC()
		rt.RevokedAt = &now
	}
	return nil
}

func (s *memStore) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return errStoreDown
	}
	s.revokedAll = append(s.revokedAll, userID)
	now := time.Now().UTC()
	for _, rt := range s.tokens {
		if rt.UserID == userID && rt.RevokedAt == nil {
			rt.RevokedAt = &now
		}
	}
	return nil
}

type handlerFixture struct {
	c     *app.Container
	store *memStore
}

// newHandlerFixture wires a container around the in-memory store with one
// active user (alice, tenant t-1) holding the member role.
func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	ks, err := jwtx.NewEphemeralKeystore()
	if err != nil {
		t.Fatalf("keystore: %v", err)
	}

	cfg := &config.Config{}
	cfg.JWT.Issuer = testIssuer
	cfg.JWT.AccessTTL = "15m"
	cfg.JWT.RefreshTTL = "720h"
	cfg.Auth.Cookie.AccessName = "tg_access"
	cfg.Auth.Cookie.RefreshName = "tg_refresh"
	cfg.Auth.Cookie.CSRFName = "csrf_token"
	cfg.Auth.Cookie.SameSite = "lax"

	hash, err := password.Hash(password.Default, testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	store := newMemStore()
	tid := "t-1"
	store.users["u-1"] = &core.User{
		ID: "u-1", TenantID: &tid, Email: "alice@example.test",
		PasswordHash: hash, Status: core.StatusActive, RoleID: "r-1",
	}
	store.roles["r-1"] = &core.Role{
		ID: "r-1", Name: "member", Level: 10,
		Permissions: []string{"users:read:all", "users:create:all"},
	}

	cc := cache.NewMemory("")
	return &handlerFixture{
		c: &app.Container{
			Cfg:        cfg,
			Store:      store,
			Cache:      cc,
			Keys:       ks,
			Issuer:     jwtx.NewIssuer(testIssuer, ks, 15*time.Minute),
			Principals: auth.NewPrincipalCache(cc, 5*time.Minute),
		},
		store: store,
	}
}

// seedRefreshToken persists a refresh token for raw and returns its record.
func (f *handlerFixture) seedRefreshToken(t *testing.T, raw, userID string, expiresAt time.Time) *core.RefreshToken {
	t.Helper()
	rt, err := f.store.CreateRefreshToken(context.Background(), userID, tokens.SHA256Base64URL(raw), expiresAt, nil)
	if err != nil {
		t.Fatalf("seed token: %v", err)
	}
	return rt
}

func responseCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, ck := range w.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad error envelope: %v (body %s)", err, w.Body.String())
	}
	return body.Code
}
