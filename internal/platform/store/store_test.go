package store

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingTx struct {
	TxRunner
	err    error
	closed bool
}

func (p *pingTx) Ping(context.Context) error { return p.err }
func (p *pingTx) Close() error               { p.closed = true; return nil }

type pingCH struct {
	Clickhouse
	err    error
	closed bool
}

func (p *pingCH) Ping(context.Context) error { return p.err }
func (p *pingCH) Close() error               { p.closed = true; return nil }

func TestOpen_NothingEnabled(t *testing.T) {
	s, err := Open(context.Background(), Config{}, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	assert.Nil(t, s.PG)
	assert.Nil(t, s.CH)
	assert.NoError(t, s.Guard(context.Background()))
	assert.NoError(t, s.Close(context.Background()))
}

func TestOpen_CHOnly(t *testing.T) {
	s, err := Open(context.Background(), Config{CH: CHConfig{Enabled: true, URL: "clickhouse://127.0.0.1:9000/default"}})
	require.NoError(t, err)
	assert.Nil(t, s.PG)
	assert.NotNil(t, s.CH)
	_ = s.Close(context.Background())
}

func TestOpen_PGBadURL(t *testing.T) {
	_, err := Open(context.Background(), Config{PG: PGConfig{Enabled: true, URL: "::bad"}})
	assert.Error(t, err)
}

func TestGuard(t *testing.T) {
	var nilStore *Store
	assert.Error(t, nilStore.Guard(context.Background()))

	pg := &pingTx{}
	ch := &pingCH{err: errors.New("connection refused")}
	s := &Store{PG: pg, CH: ch}

	err := s.Guard(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ch: connection refused")
	assert.NotContains(t, err.Error(), "pg:")

	pg.err = errors.New("timeout")
	ch.err = nil
	assert.EqualError(t, s.Guard(context.Background()), "pg: timeout")

	require.NoError(t, s.Close(context.Background()))
	assert.True(t, pg.closed)
	assert.True(t, ch.closed)
}
