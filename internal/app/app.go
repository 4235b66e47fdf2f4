// Package app wires the service dependencies into a single container that
// handlers receive by constructor injection. No free-standing globals: the
// container is built once at process start and is clearable for tests.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dropDatabas3/tenantgate/internal/auth"
	"github.com/dropDatabas3/tenantgate/internal/cache"
	"github.com/dropDatabas3/tenantgate/internal/config"
	"github.com/dropDatabas3/tenantgate/internal/jwt"
	"github.com/dropDatabas3/tenantgate/internal/metrics"
	"github.com/dropDatabas3/tenantgate/internal/store/core"
	"github.com/dropDatabas3/tenantgate/internal/store/pg"
	"github.com/dropDatabas3/tenantgate/internal/tenant"
)

// Store is the persistence surface the handlers and commands consume.
// *pg.Store is the production implementation; tests substitute fakes.
type Store interface {
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close()

	GetUserByID(ctx context.Context, id string) (*core.User, error)
	GetUserByEmail(ctx context.Context, email string) (*core.User, error)
	ListUsers(ctx context.Context, pred auth.ScopePredicate) ([]*core.User, error)
	CreateUser(ctx context.Context, u *core.User) (*core.User, error)
	SetUserStatus(ctx context.Context, id, status string) error

	GetRoleByID(ctx context.Context, id string) (*core.Role, error)
	SaveRole(ctx context.Context, r *core.Role) (*core.Role, error)
	ListRoles(ctx context.Context) ([]*core.Role, error)

	CreateRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time, replacedFrom *string) (*core.RefreshToken, error)
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*core.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

type Container struct {
	Cfg        *config.Config
	Store      Store
	Cache      cache.Client
	Keys       *jwt.Keystore
	Issuer     *jwt.Issuer
	Principals *auth.PrincipalCache
	Binder     *tenant.Binder
	Validator  *auth.Validator
}

// New builds the full dependency graph.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	store, err := pg.New(ctx, cfg.Storage.DSN, pg.Config{
		MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
		MinIdleConns:    cfg.Storage.Postgres.MinIdleConns,
		ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("app: store: %w", err)
	}

	cc, err := cache.New(cache.Config{
		Driver:   cfg.Cache.Driver,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("app: cache: %w", err)
	}

	keys, err := jwt.LoadKeystore(cfg.JWT.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("app: keystore: %w", err)
	}

	issuer := jwt.NewIssuer(cfg.JWT.Issuer, keys, config.Duration(cfg.JWT.AccessTTL))
	principals := auth.NewPrincipalCache(cc, config.Duration(cfg.Cache.PrincipalTTL))
	binder := tenant.NewBinder(store.Pool())
	validator := auth.NewValidator(keys, cfg.JWT.Issuer, principals, store, binder)

	if err := metrics.Register(nil); err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}

	return &Container{
		Cfg:        cfg,
		Store:      store,
		Cache:      cc,
		Keys:       keys,
		Issuer:     issuer,
		Principals: principals,
		Binder:     binder,
		Validator:  validator,
	}, nil
}

// Close releases pooled resources.
func (c *Container) Close() {
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
	if c.Store != nil {
		c.Store.Close()
	}
}
