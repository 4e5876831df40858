package modkit

import (
	"net/http"
	"slices"

	"clockrelay/internal/modkit/httpkit"
)

// Built is the resolved option set a module copies into itself
type Built struct {
	Name   string
	Prefix string
	Mw     []func(http.Handler) http.Handler

	Subrouter func(httpkit.Router) httpkit.Router
	Register  func(httpkit.Router)
}

// Build applies opts in order, later options win
// Subrouter and Register are never nil on the result
func Build(opts ...Option) Built {
	var c buildCfg
	for _, o := range opts {
		o(&c)
	}
	if c.subrouter == nil {
		c.subrouter = func(r httpkit.Router) httpkit.Router { return r }
	}
	if c.register == nil {
		c.register = func(httpkit.Router) {}
	}
	return Built{
		Name:      c.name,
		Prefix:    c.prefix,
		Mw:        slices.Clone(c.mw),
		Subrouter: c.subrouter,
		Register:  c.register,
	}
}
