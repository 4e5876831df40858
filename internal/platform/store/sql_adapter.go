package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgx is the shared surface of *pgxpool.Pool and pgx.Tx
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// querier adapts a pool or a tx to RowQuerier; tracing happens in pgx
type querier struct{ q pgxQuerier }

func (a querier) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	return a.q.Exec(ctx, sql, args...)
}

func (a querier) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	rs, err := a.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return rs, nil
}

func (a querier) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return a.q.QueryRow(ctx, sql, args...)
}

// pgAdapter is the TxRunner over a pgx pool
type pgAdapter struct {
	querier
	pool *pgxpool.Pool
}

func newPGAdapter(pool *pgxpool.Pool) *pgAdapter {
	return &pgAdapter{querier: querier{q: pool}, pool: pool}
}

// Tx commits when fn returns nil and rolls back otherwise
func (a *pgAdapter) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	return pgx.BeginFunc(ctx, a.pool, func(tx pgx.Tx) error {
		return fn(querier{q: tx})
	})
}

func (a *pgAdapter) Ping(ctx context.Context) error { return a.pool.Ping(ctx) }

func (a *pgAdapter) Close() error {
	a.pool.Close()
	return nil
}
