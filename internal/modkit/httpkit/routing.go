package httpkit

import (
	"net/http"
	"strings"

	"clockrelay/internal/platform/net/middleware"
)

// MountUnder mounts a subrouter at prefix behind mw
// an empty or "/" prefix mounts an inline group so modules can share the root
func MountUnder(r Router, prefix string, mw []func(http.Handler) http.Handler, mount func(Router)) {
	scoped := func(sub Router) {
		if len(mw) > 0 {
			sub.Use(mw...)
		}
		mount(sub)
	}
	if strings.Trim(prefix, "/") == "" {
		r.Group(scoped)
		return
	}
	r.Route(prefix, scoped)
}

// MountAPIV1 mounts routes under /api/v1
func MountAPIV1(r Router, mw []func(http.Handler) http.Handler, mount func(Router)) {
	MountUnder(r, "/api/v1", mw, mount)
}

// Protected groups routes behind bearer auth; a nil port leaves them open
func Protected(r Router, p middleware.AuthPort, fn func(Router)) {
	r.Group(func(gr Router) {
		gr.Use(Auth(p))
		fn(gr)
	})
}
