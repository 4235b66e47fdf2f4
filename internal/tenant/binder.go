// Package tenant binds each request to an isolated tenant execution context
// inside the shared database.
//
// Isolation rides on row-level security: every policy reads the
// transaction-local parameter app.tenant_id. The binder opens a transaction
// per request, sets the parameter with set_config(..., true) so it can never
// leak onto the pooled connection, and hands the transaction to the request
// through the context. An empty value is the super-admin sentinel: policies
// interpret it as "no tenant restriction".
package tenant

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/tenantgate/internal/metrics"
	"github.com/dropDatabas3/tenantgate/internal/observability/logger"
)

// TxStarter is satisfied by *pgxpool.Pool.
type TxStarter interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Binder establishes per-request tenant contexts.
type Binder struct {
	db TxStarter
}

func NewBinder(db TxStarter) *Binder {
	return &Binder{db: db}
}

// Bind opens a transaction, sets app.tenant_id transaction-locally, and
// returns a context carrying the bound transaction. It must run before any
// row is read or written on this request; the caller owns settling the
// transaction through Finish.
func (b *Binder) Bind(ctx context.Context, tenantID string) (context.Context, error) {
	tx, err := b.db.Begin(ctx)
	if err != nil {
		metrics.TenantBindings.WithLabelValues("error").Inc()
		return ctx, fmt.Errorf("tenant: begin: %w", err)
	}

	// is_local=true scopes the parameter to this transaction, so the pooled
	// connection carries nothing over to the next request.
	if _, err := tx.Exec(ctx, `SELECT set_config('app.tenant_id', $1, true)`, tenantID); err != nil {
		_ = tx.Rollback(ctx)
		metrics.TenantBindings.WithLabelValues("error").Inc()
		return ctx, fmt.Errorf("tenant: set_config: %w", err)
	}

	metrics.TenantBindings.WithLabelValues("ok").Inc()
	return WithTx(ctx, tx), nil
}

// Finish settles the bound transaction: commit when the request succeeded,
// rollback otherwise. A context without a bound transaction is a no-op.
func Finish(ctx context.Context, reqErr error) error {
	tx, ok := TxFrom(ctx)
	if !ok {
		return nil
	}
	if reqErr != nil {
		if err := tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
			logger.From(ctx).Warn("tenant tx rollback failed",
				logger.Component("tenant"), logger.Err(err))
		}
		return nil
	}
	if err := tx.Commit(ctx); err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("tenant: commit: %w", err)
	}
	return nil
}

type txCtxKey struct{}

// WithTx attaches a bound transaction to the context.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txCtxKey{}, tx)
}

// TxFrom extracts the bound transaction, if the binder ran.
func TxFrom(ctx context.Context) (pgx.Tx, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(txCtxKey{}).(pgx.Tx)
	return tx, ok
}
