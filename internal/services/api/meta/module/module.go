// Package module wires meta endpoints into the API using a tiny module
package module

import (
	"context"
	"net/http"
	"time"

	"clockrelay/internal/adapters/crm"
	"clockrelay/internal/platform/store"

	"clockrelay/internal/core/version"
	modkit "clockrelay/internal/modkit"
	"clockrelay/internal/modkit/httpkit"
	str "clockrelay/internal/platform/strings"

	metahttp "clockrelay/internal/services/api/meta/http"
)

// Module implements the modkit.Module interface
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	startedAt time.Time
}

// New constructs a meta module; crmHealth may be nil
func New(deps modkit.Deps, crmHealth crm.Health, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("meta"),
		modkit.WithPrefix("/meta"),
	}, opts...)...)

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		subrouter: b.Subrouter,
		startedAt: time.Now(),
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		metahttp.Register(r, metahttp.Deps{
			ServiceName: version.Info().Service,
			StartedAt:   m.startedAt,
			Checks:      Checks(deps, crmHealth),
		})
		if external != nil {
			external(r)
		}
	}

	return m
}

// Checks lists the readiness probes: postgres is required, the rest only degrade
func Checks(deps modkit.Deps, crmHealth crm.Health) []metahttp.Check {
	checks := []metahttp.Check{
		{Name: "pg", Required: true, Probe: pingOf(deps.PG)},
		{Name: "ch", Probe: pingOf(deps.CH)},
		{Name: "crm"},
	}
	if crmHealth != nil {
		checks[2].Probe = crmHealth.Healthy
	}
	return checks
}

func pingOf(v any) func(context.Context) error {
	if p, ok := v.(store.Pinger); ok {
		return p.Ping
	}
	return nil
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	httpkit.MountUnder(r, m.prefix, m.mws, func(rr httpkit.Router) {
		m.register(m.subrouter(rr))
	})
}

// Name implements the modkit.Module interface
func (m *Module) Name() string { return str.MustString(m.name, "meta") }

// Prefix implements the modkit.Module interface
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Middlewares implements the modkit.Module interface
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.mws }

// Ports implements the modkit.Module interface
func (m *Module) Ports() any { return nil }
