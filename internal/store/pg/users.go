package pg

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/tenantgate/internal/auth"
	"github.com/dropDatabas3/tenantgate/internal/store/core"
)

const userCols = `id, tenant_id, email, password_hash, status, role_id, created_at`

func scanUser(row pgx.Row) (*core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.Status, &u.RoleID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	const q = `SELECT ` + userCols + ` FROM app_user WHERE id = $1`
	return scanUser(s.q(ctx).QueryRow(ctx, q, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	const q = `SELECT ` + userCols + ` FROM app_user WHERE LOWER(email) = LOWER($1) LIMIT 1`
	return scanUser(s.q(ctx).QueryRow(ctx, q, strings.TrimSpace(email)))
}

// ListUsers applies the resolved scope predicate on top of the RLS tenant
// filter. DenyAll short-circuits to an empty slice without touching the DB.
func (s *Store) ListUsers(ctx context.Context, pred auth.ScopePredicate) ([]*core.User, error) {
	switch pred.Kind {
	case auth.PredicateDenyAll:
		return []*core.User{}, nil
	case auth.PredicateOwnerOnly:
		const q = `SELECT ` + userCols + ` FROM app_user WHERE id = $1 ORDER BY created_at`
		return s.listUsers(ctx, q, pred.OwnerID)
	default:
		// Unrestricted and TenantOnly both rely on the RLS policy bound to
		// app.tenant_id; the statement itself carries no tenant filter.
		const q = `SELECT ` + userCols + ` FROM app_user ORDER BY created_at`
		return s.listUsers(ctx, q)
	}
}

func (s *Store) listUsers(ctx context.Context, q string, args ...any) ([]*core.User, error) {
	rows, err := s.q(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*core.User{}
	for rows.Next() {
		var u core.User
		if err := rows.Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.Status, &u.RoleID, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, u *core.User) (*core.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = strings.TrimSpace(strings.ToLower(u.Email))
	if u.Status == "" {
		u.Status = core.StatusActive
	}
	u.CreatedAt = time.Now().UTC()

	const q = `
INSERT INTO app_user (id, tenant_id, email, password_hash, status, role_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := s.q(ctx).Exec(ctx, q, u.ID, u.TenantID, u.Email, u.PasswordHash, u.Status, u.RoleID, u.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, core.ErrConflict
		}
		return nil, err
	}
	return u, nil
}

func (s *Store) SetUserStatus(ctx context.Context, id, status string) error {
	const q = `UPDATE app_user SET status = $2 WHERE id = $1`
	tag, err := s.q(ctx).Exec(ctx, q, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	// 23505 = unique_violation
	return err != nil && strings.Contains(err.Error(), "23505")
}
