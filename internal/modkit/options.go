package modkit

import (
	"net/http"

	phttp "clockrelay/internal/platform/net/http"
)

// Option adjusts how Build assembles a module. Service modules pass their
// defaults first so callers of New can override any of them.
type Option func(*buildCfg)

type buildCfg struct {
	name      string
	prefix    string
	mw        []func(http.Handler) http.Handler
	subrouter func(phttp.Router) phttp.Router
	register  func(phttp.Router)
}

// WithName labels the module in errors such as schema bootstrap failures
func WithName(name string) Option { return func(c *buildCfg) { c.name = name } }

// WithPrefix sets the mount path under /api/v1; "" mounts at the root group
func WithPrefix(prefix string) Option { return func(c *buildCfg) { c.prefix = prefix } }

// WithMiddlewares adds middleware that runs only for this module's routes
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(c *buildCfg) { c.mw = append(c.mw, mw...) }
}

// WithSubrouter swaps the router handed to Register
func WithSubrouter(fn func(phttp.Router) phttp.Router) Option {
	return func(c *buildCfg) { c.subrouter = fn }
}

// WithRegister mounts routes after the module's own, e.g. test probes
func WithRegister(fn func(phttp.Router)) Option {
	return func(c *buildCfg) { c.register = fn }
}
