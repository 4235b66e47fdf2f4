package pg

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/tenantgate/internal/store/core"
)

// Refresh tokens are stored by hash only; the raw value never touches the DB.
// These queries run on the pool, not the bound transaction: refresh happens
// before a principal (and therefore a tenant context) exists.

func (s *Store) CreateRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time, replacedFrom *string) (*core.RefreshToken, error) {
	rt := &core.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: tokenHash,
		IssuedAt:  time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
	const q = `
INSERT INTO refresh_token (id, user_id, token_hash, issued_at, expires_at)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, q, rt.ID, rt.UserID, rt.TokenHash, rt.IssuedAt, rt.ExpiresAt); err != nil {
		return nil, err
	}
	if replacedFrom != nil {
		const link = `UPDATE refresh_token SET replaced_by = $2 WHERE id = $1`
		if _, err := s.pool.Exec(ctx, link, *replacedFrom, rt.ID); err != nil {
			return nil, err
		}
	}
	return rt, nil
}

func (s *Store) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*core.RefreshToken, error) {
	const q = `
SELECT id, user_id, token_hash, issued_at, expires_at, replaced_by, revoked_at
FROM refresh_token WHERE token_hash = $1`
	var rt core.RefreshToken
	err := s.pool.QueryRow(ctx, q, tokenHash).Scan(
		&rt.ID, &rt.UserID, &rt.TokenHash, &rt.IssuedAt, &rt.ExpiresAt, &rt.ReplacedBy, &rt.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token revoked. Idempotent.
func (s *Store) RevokeRefreshToken(ctx context.Context, id string) error {
	const q = `UPDATE refresh_token SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`
	_, err := s.pool.Exec(ctx, q, id)
	return err
}

// RevokeUserRefreshTokens revokes every live token of a user (logout-all).
func (s *Store) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	const q = `UPDATE refresh_token SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL`
	_, err := s.pool.Exec(ctx, q, userID)
	return err
}
