// Package repokit is the seam between repos and the store
package repokit

import "clockrelay/internal/platform/store"

type (
	// Queryer is the read and write surface repos bind to
	Queryer = store.RowQuerier

	// TxRunner is a Queryer that can also open a transaction
	TxRunner = store.TxRunner

	Rows       = store.Rows
	Row        = store.Row
	CommandTag = store.CommandTag
)
