// Package module wires the oauth connect flow and token store into the API
package module

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"clockrelay/internal/adapters/crm"
	modkit "clockrelay/internal/modkit"
	"clockrelay/internal/modkit/httpkit"
	"clockrelay/internal/platform/logger"
	"clockrelay/internal/platform/net/middleware"

	ohttp "clockrelay/internal/services/oauth/http"
	orepo "clockrelay/internal/services/oauth/repo"
	osvc "clockrelay/internal/services/oauth/service"
)

// Module implements the oauth API module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws []func(http.Handler) http.Handler

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc osvc.Service
}

// Ports exposes the credential store to other modules
type Ports struct {
	Credentials crm.CredentialSource
}

// New constructs the oauth module
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("oauth"),
		modkit.WithPrefix(""),
	}, opts...)...)

	if deps.PG == nil {
		panic("oauth module requires a Postgres TxRunner")
	}
	cfg := FromConfig(deps.Cfg)

	svc := osvc.New(deps.PG, orepo.NewPG(), osvc.Options{
		ClientID:      cfg.ClientID,
		ClientSecret:  cfg.ClientSecret,
		RedirectURL:   cfg.RedirectURL,
		LoginURL:      cfg.LoginURL,
		Scopes:        cfg.Scopes,
		StateSecret:   cfg.StateSecret,
		StateTTL:      cfg.StateTTL,
		DefaultTenant: cfg.DefaultTenant,
		HTTPClient:    &http.Client{Timeout: cfg.Timeout},
	})

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		subrouter: b.Subrouter,
		svc:       svc,
	}

	rd := ohttp.Deps{SuccessRedirect: cfg.SuccessRedirect, Admin: adminPort(cfg.AdminToken)}
	if rd.Admin == nil {
		logger.Get().Warn().Msg("OAUTH_ADMIN_TOKEN not set, /tokens is unauthenticated")
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		ohttp.Register(r, m.svc, rd)
		if external != nil {
			external(r)
		}
	}
	return m
}

// adminPort accepts exactly the configured bearer
func adminPort(token string) middleware.AuthPort {
	if token == "" {
		return nil
	}
	want := []byte(token)
	return httpkit.NewPortFunc(func(got string) (string, error) {
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			return "", errors.New("bad admin token")
		}
		return "admin", nil
	})
}

// Credentials returns the credential source backed by this module's store
func (m *Module) Credentials() crm.CredentialSource { return m.svc }

// EnsureSchema creates the credentials table when missing
func (m *Module) EnsureSchema(ctx context.Context) error {
	return orepo.EnsureSchema(ctx, m.deps.PG)
}

// MountRoutes mounts the module routes on the given router
func (m *Module) MountRoutes(r httpkit.Router) {
	httpkit.MountUnder(r, m.prefix, m.mws, func(rr httpkit.Router) {
		if m.subrouter != nil {
			rr = m.subrouter(rr)
		}
		if m.register != nil {
			m.register(rr)
		}
	})
}

// Ports returns the module ports
func (m *Module) Ports() any { return Ports{Credentials: m.svc} }

// Name returns the module name
func (m *Module) Name() string { return m.name }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return m.prefix }
