// Package modkit provides module wiring and core deps
package modkit

import (
	"clockrelay/internal/modkit/repokit"
	"clockrelay/internal/platform/config"
	"clockrelay/internal/platform/logger"
	"clockrelay/internal/platform/store"
)

// Deps holds the shared dependencies passed to every module
// CH is nil unless ClickHouse is enabled
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.TxRunner
	CH  store.Clickhouse
}
