package modkit

import (
	phttp "clockrelay/internal/platform/net/http"
)

// Module is what api.Build mounts
type Module interface {
	MountRoutes(r phttp.Router)

	// Ports returns the module's port bundle, or nil when it exposes none
	Ports() any

	Name() string
}
