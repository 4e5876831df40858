package repokit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tag int64

func (t tag) String() string      { return "OK" }
func (t tag) RowsAffected() int64 { return int64(t) }

type recorder struct {
	stmts []string
	inTx  bool
	txs   int
}

func (r *recorder) Exec(_ context.Context, sql string, _ ...any) (CommandTag, error) {
	prefix := "pool:"
	if r.inTx {
		prefix = "tx:"
	}
	r.stmts = append(r.stmts, prefix+sql)
	return tag(1), nil
}

func (r *recorder) Query(context.Context, string, ...any) (Rows, error) { return nil, nil }
func (r *recorder) QueryRow(context.Context, string, ...any) Row        { return nil }

func (r *recorder) Tx(ctx context.Context, fn func(Queryer) error) error {
	r.txs++
	r.inTx = true
	defer func() { r.inTx = false }()
	return fn(r)
}

func exec(sql string) BeginHook {
	return func(ctx context.Context, q Queryer) error {
		_, err := q.Exec(ctx, sql)
		return err
	}
}

func TestWithBeginHooks_RunInsideTheTxBeforeFn(t *testing.T) {
	rec := &recorder{}
	db := WithBeginHooks(rec, exec("SET LOCAL lock_timeout = '2000ms'"), exec("SET LOCAL statement_timeout = '5s'"))

	err := db.Tx(context.Background(), func(q Queryer) error {
		_, err := q.Exec(context.Background(), "insert")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.txs)
	assert.Equal(t, []string{
		"tx:SET LOCAL lock_timeout = '2000ms'",
		"tx:SET LOCAL statement_timeout = '5s'",
		"tx:insert",
	}, rec.stmts)
}

func TestWithBeginHooks_HookErrorSkipsFn(t *testing.T) {
	boom := errors.New("boom")
	ran := false
	db := WithBeginHooks(&recorder{}, func(context.Context, Queryer) error { return boom })

	err := db.Tx(context.Background(), func(Queryer) error { ran = true; return nil })
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
}

func TestWithBeginHooks_DirectCallsSkipHooks(t *testing.T) {
	rec := &recorder{}
	db := WithBeginHooks(rec, exec("SET LOCAL x"))

	ct, err := db.Exec(context.Background(), "delete")
	require.NoError(t, err)
	assert.EqualValues(t, 1, ct.RowsAffected())
	assert.Equal(t, []string{"pool:delete"}, rec.stmts)
}

func TestBindFunc(t *testing.T) {
	rec := &recorder{}
	var b Binder[Queryer] = BindFunc[Queryer](func(q Queryer) Queryer { return q })
	assert.Same(t, rec, b.Bind(rec))
}
