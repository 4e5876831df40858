package store

import (
	"context"
	"fmt"
	"time"

	"clockrelay/internal/platform/logger"
	chx "clockrelay/internal/platform/store/ch"
	"clockrelay/internal/platform/store/pg"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultConnectRetries = 20
	defaultPingTimeout    = 3 * time.Second
)

// connectBackoff is swapped in tests
var connectBackoff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 150 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0
	return b
}

func openPG(ctx context.Context, cfg PGConfig, log logger.Logger) (*pgAdapter, error) {
	p, err := pg.Open(ctx, pg.Config{
		URL:       cfg.URL,
		MaxConns:  cfg.MaxConns,
		LogSQL:    cfg.LogSQL,
		SlowQuery: cfg.SlowQuery,
	}, log)
	if err != nil {
		return nil, err
	}

	retries := cfg.ConnectRetries
	if retries <= 0 {
		retries = defaultConnectRetries
	}
	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}

	ping := func() error {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return p.Ping(pctx)
	}
	attempt := 0
	notify := func(err error, wait time.Duration) {
		attempt++
		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("postgres not ready")
	}
	b := backoff.WithContext(backoff.WithMaxRetries(connectBackoff(), uint64(retries-1)), ctx)
	if err := backoff.RetryNotify(ping, b, notify); err != nil {
		p.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("postgres ping failed after %d attempts: %w", attempt+1, err)
	}
	return newPGAdapter(p.Pool), nil
}

func openCH(ctx context.Context, cfg CHConfig) (Clickhouse, error) {
	c, err := chx.Open(ctx, chx.Config{URL: cfg.URL, Role: cfg.ClientName, Tag: cfg.ClientTag})
	if err != nil {
		return nil, err
	}
	return chAdapter{c}, nil
}
