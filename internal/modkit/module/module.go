// Package module holds the mountable module contract and port lookup
package module

import (
	phttp "clockrelay/internal/platform/net/http"
)

// Module is mounted by api.Mount; it mirrors modkit.Module so service
// modules can depend on this package alone
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}
