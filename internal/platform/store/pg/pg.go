// Package pg opens the pgx pool with query tracing wired in
package pg

import (
	"context"
	"time"

	"clockrelay/internal/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config configures the pool and its tracer
type Config struct {
	URL       string
	MaxConns  int32
	LogSQL    bool
	SlowQuery time.Duration
}

// PG owns the pool
type PG struct {
	Pool *pgxpool.Pool
}

// newPool is swapped in tests
var newPool = pgxpool.NewWithConfig

// Open parses cfg.URL and builds the pool without waiting for a connection
func Open(ctx context.Context, cfg Config, log logger.Logger) (*PG, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pcfg.ConnConfig.Tracer = NewTracer(log, cfg.LogSQL, cfg.SlowQuery)

	pool, err := newPool(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	return &PG{Pool: pool}, nil
}

// Ping checks one pooled connection
func (p *PG) Ping(ctx context.Context) error { return p.Pool.Ping(ctx) }

// Close closes the pool
func (p *PG) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}
