// Package store opens the Postgres and ClickHouse backends behind small seams
//
// Repos depend on RowQuerier or TxRunner only, never on pgx, so the lock and
// credential code can be tested against in-memory fakes.
package store

import (
	"context"
	"errors"
	"fmt"

	"clockrelay/internal/platform/logger"
)

// Row is one result row
type Row interface {
	Scan(dest ...any) error
}

// Rows is a result set; callers must Close it
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// CommandTag reports what a statement did
type CommandTag interface {
	String() string
	RowsAffected() int64
}

// RowQuerier is the SQL surface repos bind to
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// TxRunner runs fn in a transaction, committing when fn returns nil
type TxRunner interface {
	RowQuerier
	Tx(ctx context.Context, fn func(q RowQuerier) error) error
}

// Clickhouse is the append and scan surface of the audit store
type Clickhouse interface {
	// Insert appends rows in one batch, values in table column order
	Insert(ctx context.Context, table string, rows [][]any) error
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Close() error
}

// Pinger reports readiness
type Pinger interface{ Ping(context.Context) error }

// Store holds whichever backends Open enabled; the others stay nil
type Store struct {
	Log logger.Logger
	PG  TxRunner
	CH  Clickhouse
}

// Option configures Open
type Option func(*Store)

// WithLogger sets the logger handed to the backends
func WithLogger(l logger.Logger) Option {
	return func(s *Store) { s.Log = l }
}

// Open connects the backends cfg enables
// Postgres is retried with backoff until healthy, ClickHouse is dialed once
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		o(s)
	}

	if cfg.PG.Enabled {
		db, err := openPG(ctx, cfg.PG, s.Log)
		if err != nil {
			return nil, err
		}
		s.PG = db
	}
	if cfg.CH.Enabled {
		c, err := openCH(ctx, cfg.CH)
		if err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		s.CH = c
	}
	return s, nil
}

// Guard pings every open backend and joins the failures
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return errors.New("store: nil store")
	}
	var errs []error
	for name, b := range map[string]any{"pg": s.PG, "ch": s.CH} {
		p, ok := b.(Pinger)
		if !ok || p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Close releases every open backend
func (s *Store) Close(context.Context) error {
	var errs []error
	if s.CH != nil {
		errs = append(errs, s.CH.Close())
	}
	if c, ok := s.PG.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
