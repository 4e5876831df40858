package repokit

import "context"

// BeginHook runs first inside every transaction, typically SET LOCAL
type BeginHook func(ctx context.Context, q Queryer) error

// WithBeginHooks wraps inner so Tx runs hooks before fn in the same tx
// a hook error aborts the tx and fn never runs
func WithBeginHooks(inner TxRunner, hooks ...BeginHook) TxRunner {
	return hookedTx{TxRunner: inner, hooks: hooks}
}

type hookedTx struct {
	TxRunner
	hooks []BeginHook
}

func (h hookedTx) Tx(ctx context.Context, fn func(q Queryer) error) error {
	return h.TxRunner.Tx(ctx, func(q Queryer) error {
		for _, hk := range h.hooks {
			if err := hk(ctx, q); err != nil {
				return err
			}
		}
		return fn(q)
	})
}
