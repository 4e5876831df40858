// Package module wires clock sync into the API using modkit
package module

import (
	"context"
	"net/http"

	"clockrelay/internal/adapters/crm"
	"clockrelay/internal/adapters/crm/salesforce"
	"clockrelay/internal/core/clocktime"
	modkit "clockrelay/internal/modkit"
	"clockrelay/internal/modkit/httpkit"
	"clockrelay/internal/platform/logger"

	cdom "clockrelay/internal/services/clocksync/domain"
	"clockrelay/internal/services/clocksync/guardrails"
	chttp "clockrelay/internal/services/clocksync/http"
	crepo "clockrelay/internal/services/clocksync/repo"
	csvc "clockrelay/internal/services/clocksync/service"
)

// Module implements the clock sync API module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws []func(http.Handler) http.Handler

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc   csvc.Service
	gw    crm.Health
	locks *guardrails.SubjectLock
	audit crepo.Audit
}

// Ports exposes the sync service for cross module lookups
type Ports struct {
	Sync cdom.ServicePort
	CRM  crm.Health
}

// New constructs the clock sync module
// creds supplies per tenant CRM credentials, usually the oauth module's store
func New(deps modkit.Deps, creds crm.CredentialSource, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("clocksync"),
		modkit.WithPrefix(""),
	}, opts...)...)

	if deps.PG == nil {
		panic("clocksync module requires a Postgres TxRunner")
	}
	if creds == nil {
		panic("clocksync module requires a CredentialSource")
	}

	cfg := FromConfig(deps.Cfg)

	locks := guardrails.NewSubjectLock(deps.PG, guardrails.LockOptions{
		StaleAfter:     cfg.LockStaleAfter,
		ReleaseTimeout: cfg.LockReleaseTimeout,
		LockTimeout:    cfg.LockTimeout,
	})

	gw := salesforce.NewClient(creds, salesforce.Options{
		APIVersion:      cfg.APIVersion,
		Timeout:         cfg.Timeout,
		Fields:          cfg.Fields,
		BreakerFailures: uint32(max(cfg.BreakerFailures, 0)),
		BreakerTimeout:  cfg.BreakerTimeout,
	})

	var audit crepo.Audit = crepo.Noop{}
	if deps.CH != nil {
		audit = crepo.NewClickhouse(deps.CH)
	}

	svc := csvc.New(locks, gw, csvc.Options{
		Tolerance:        cfg.MatchTolerance,
		DefaultTenant:    cfg.DefaultTenant,
		ClockOutLockWait: cfg.ClockOutLockWait,
		Normalizer:       clocktime.New(clocktime.WithDisplayZone(cfg.displayZone())),
		Audit:            audit,
		History:          audit,
	})

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		subrouter: b.Subrouter,
		svc:       svc,
		gw:        gw,
		locks:     locks,
		audit:     audit,
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		chttp.Register(r, m.svc)
		if external != nil {
			external(r)
		}
	}
	return m
}

// EnsureSchema creates the lock table and, when enabled, the audit table
func (m *Module) EnsureSchema(ctx context.Context) error {
	if err := m.locks.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := m.audit.EnsureSchema(ctx); err != nil {
		return err
	}
	logger.C(ctx).Debug().Str("module", m.name).Msg("schema ready")
	return nil
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
func (m *Module) Ports() any { return Ports{Sync: m.svc, CRM: m.gw} }

// Name returns the module name
func (m *Module) Name() string { return m.name }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return m.prefix }
