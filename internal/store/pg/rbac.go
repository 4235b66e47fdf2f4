package pg

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/tenantgate/internal/auth"
	"github.com/dropDatabas3/tenantgate/internal/store/core"
)

func (s *Store) GetRoleByID(ctx context.Context, id string) (*core.Role, error) {
	const q = `SELECT id, tenant_id, name, level, permissions, created_at FROM role WHERE id = $1`
	var r core.Role
	err := s.q(ctx).QueryRow(ctx, q, id).Scan(&r.ID, &r.TenantID, &r.Name, &r.Level, &r.Permissions, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// SaveRole upserts a role. Permission strings are validated here, at save
// time, so malformed entries never reach the resolver.
func (s *Store) SaveRole(ctx context.Context, r *core.Role) (*core.Role, error) {
	if err := auth.ValidatePermissions(r.Permissions); err != nil {
		return nil, core.ErrInvalid
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	const q = `
INSERT INTO role (id, tenant_id, name, level, permissions, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name, level = EXCLUDED.level, permissions = EXCLUDED.permissions`
	if _, err := s.q(ctx).Exec(ctx, q, r.ID, r.TenantID, r.Name, r.Level, r.Permissions, r.CreatedAt); err != nil {
		return nil, err
	}
	return r, nil
}

// ListRoles returns the roles visible under the current tenant binding.
func (s *Store) ListRoles(ctx context.Context) ([]*core.Role, error) {
	const q = `SELECT id, tenant_id, name, level, permissions, created_at FROM role ORDER BY level DESC, name`
	rows, err := s.q(ctx).Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*core.Role{}
	for rows.Next() {
		var r core.Role
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Name, &r.Level, &r.Permissions, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
