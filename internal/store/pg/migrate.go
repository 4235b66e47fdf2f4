package pg

import (
	"context"
	"fmt"
	"sort"

	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
	migrations "github.com/dropDatabas3/tenantgate/migrations/postgres"
)

// Migrate applies the embedded migrations in lexical order, tracking applied
// files in schema_migrations. Safe to run on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	const track = `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename text PRIMARY KEY,
		applied_at timestamptz NOT NULL DEFAULT now()
	)`
	if _, err := s.pool.Exec(ctx, track); err != nil {
		return fmt.Errorf("migrate: init tracking: %w", err)
	}

	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var applied bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE filename = $1)`, name).Scan(&applied); err != nil {
			return err
		}
		if applied {
			continue
		}

		sql, err := migrations.FS.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("migrate: apply %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO schema_migrations (filename) VALUES ($1)`, name); err != nil {
			return err
		}
		logger.L().Info("migration applied", logger.String("file", name))
	}
	return nil
}
