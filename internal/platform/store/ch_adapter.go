package store

import (
	"context"

	"clockrelay/internal/platform/store/ch"
)

// chClient is what the adapter needs from *ch.CH
type chClient interface {
	Pinger
	Exec(ctx context.Context, sql string, args ...any) error
	Insert(ctx context.Context, table string, rows [][]any) error
	Query(ctx context.Context, sql string, args ...any) (ch.Rows, error)
	Close() error
}

// chAdapter exposes a chClient as Clickhouse; only result sets need converting
type chAdapter struct{ chClient }

var (
	_ Clickhouse = chAdapter{}
	_ Pinger     = chAdapter{}
)

func (a chAdapter) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	r, err := a.chClient.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return chRows{r}, nil
}

// chRows drops the Close error the driver reports
type chRows struct{ ch.Rows }

func (r chRows) Close() { _ = r.Rows.Close() }
