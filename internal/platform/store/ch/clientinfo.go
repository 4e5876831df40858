package ch

import (
	"os"
	"runtime"

	"clockrelay/internal/core/version"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClientInfo names this process in system.query_log so audit inserts can be
// traced back to a build and host
func ClientInfo(role, tag string) clickhouse.ClientInfo {
	bi := version.Info()
	host, _ := os.Hostname()
	type product = struct{ Name, Version string }
	return clickhouse.ClientInfo{Products: []product{
		{Name: bi.Service, Version: bi.Version},
		{Name: "role", Version: role},
		{Name: "tag", Version: tag},
		{Name: "commit", Version: bi.Commit},
		{Name: "go", Version: runtime.Version()},
		{Name: "host", Version: host},
	}}
}
