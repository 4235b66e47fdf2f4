package auth

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/tenantgate/internal/cache"
	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
)

const principalKeyPrefix = "principal:"

// PrincipalCache maps a subject id to its resolved principal with a TTL that
// is always strictly below the remaining credential lifetime. Concurrent
// misses for the same subject collapse to one upstream load via singleflight.
type PrincipalCache struct {
	backend cache.Client
	ttl     time.Duration
	sf      singleflight.Group
	now     func() time.Time
}

// NewPrincipalCache builds a principal cache on top of the shared cache
// client. ttl is the configured upper bound; the effective TTL per entry is
// additionally capped by the credential expiry (see boundedTTL).
func NewPrincipalCache(backend cache.Client, ttl time.Duration) *PrincipalCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PrincipalCache{backend: backend, ttl: ttl, now: time.Now}
}

// Get returns the cached principal for a subject, or nil on miss.
func (c *PrincipalCache) Get(ctx context.Context, subjectID string) *Principal {
	raw, err := c.backend.Get(ctx, principalKeyPrefix+subjectID)
	if err != nil {
		return nil
	}
	var p Principal
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		// Corrupt entry: drop it and treat as a miss.
		_ = c.backend.Delete(ctx, principalKeyPrefix+subjectID)
		return nil
	}
	return &p
}

// GetOrLoad returns the cached principal or, on a miss, calls load exactly
// once per subject across concurrent callers and caches the result.
func (c *PrincipalCache) GetOrLoad(ctx context.Context, subjectID string, load func(context.Context) (*Principal, error)) (*Principal, error) {
	if p := c.Get(ctx, subjectID); p != nil {
		return p, nil
	}
	v, err, _ := c.sf.Do(subjectID, func() (any, error) {
		// Re-check under the flight: a concurrent winner may have filled it.
		if p := c.Get(ctx, subjectID); p != nil {
			return p, nil
		}
		p, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.Put(ctx, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Principal), nil
}

// Put stores the principal, stamping CachedAt and bounding the TTL by the
// credential's remaining lifetime.
func (c *PrincipalCache) Put(ctx context.Context, p *Principal) {
	now := c.now().UTC()
	cp := *p
	cp.CachedAt = now

	ttl := c.boundedTTL(now, cp.ExpiresAt)
	if ttl <= 0 {
		return // credential effectively expired, nothing to cache
	}

	raw, err := json.Marshal(&cp)
	if err != nil {
		return
	}
	if err := c.backend.Set(ctx, principalKeyPrefix+cp.SubjectID, string(raw), ttl); err != nil {
		logger.From(ctx).Warn("principal cache set failed",
			logger.Component("auth.cache"), logger.Err(err))
	}
}

// boundedTTL enforces the invariant cachedAt+ttl < credential expiry: the
// effective TTL is the configured one, but never more than a third of the
// credential's remaining lifetime, so a revoked-but-unexpired credential can
// only survive one short cache window.
func (c *PrincipalCache) boundedTTL(now, expiresAt time.Time) time.Duration {
	ttl := c.ttl
	if expiresAt.IsZero() {
		return ttl
	}
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	if cap := remaining / 3; cap < ttl {
		ttl = cap
	}
	return ttl
}

// Invalidate drops a subject's entry (logout, role change).
func (c *PrincipalCache) Invalidate(ctx context.Context, subjectID string) {
	_ = c.backend.Delete(ctx, principalKeyPrefix+subjectID)
	logger.From(ctx).Debug("principal invalidated", logger.Key(principalKeyPrefix+subjectID))
}
