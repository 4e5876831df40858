// Package api provides the HTTP API for the application
package api

import (
	"context"
	"fmt"

	"clockrelay/internal/adapters/crm"
	"clockrelay/internal/platform/config"
	"clockrelay/internal/platform/logger"
	"clockrelay/internal/platform/metrics"
	phttp "clockrelay/internal/platform/net/http"
	"clockrelay/internal/platform/store"

	"clockrelay/internal/modkit"
	"clockrelay/internal/modkit/httpkit"
	"clockrelay/internal/modkit/module"
	"clockrelay/internal/modkit/swaggerkit"

	metamod "clockrelay/internal/services/api/meta/module"
	syncmod "clockrelay/internal/services/clocksync/module"
	oauthmod "clockrelay/internal/services/oauth/module"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	EnableSwagger  bool
	DocsTitle      string
	EnableProfiler bool
	EnableMetrics  bool
}

// schemaOwner is a module that owns tables it can create at startup
type schemaOwner interface {
	EnsureSchema(ctx context.Context) error
}

// Mounted is the set of modules mounted by Mount
type Mounted struct {
	Modules []module.Module
}

// EnsureSchema runs every module's schema bootstrap in mount order
func (m Mounted) EnsureSchema(ctx context.Context) error {
	for _, mod := range m.Modules {
		if so, ok := mod.(schemaOwner); ok {
			if err := so.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("%s schema: %w", mod.Name(), err)
			}
		}
	}
	return nil
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) Mounted {
	// shared deps for modules
	deps := modkit.Deps{
		Cfg: opt.Config,
		PG:  opt.Store.PG,
		CH:  opt.Store.CH,
	}
	if opt.Logger != nil {
		deps.Log = *opt.Logger
	}

	// oauth owns the credential store, clocksync reads through its port
	oauth := oauthmod.New(deps)
	creds := module.MustPortsOf[oauthmod.Ports](oauth).Credentials

	clocksync := syncmod.New(deps, creds)
	health := module.MustPortsOf[crm.Health](clocksync)

	mods := []module.Module{
		metamod.New(deps, health),
		oauth,
		clocksync,
	}

	stack := httpkit.CommonStackWith(httpkit.StackOptions{
		RateLimit:   opt.Config.MayInt("RATE_LIMIT", 120),
		CORSOrigins: opt.Config.MayCSV("CORS_ORIGINS", nil),
		Timeout:     opt.Config.MayDuration("REQUEST_TIMEOUT", 0),
		SlowRequest: opt.Config.MayDuration("SLOW_REQUEST", 0),
	})

	// versioned API with a common middleware stack
	httpkit.MountAPIV1(r, stack, func(api httpkit.Router) {
		// Swagger + profiler
		swaggerkit.Mount(r, opt.EnableSwagger, docsTitle(opt.DocsTitle))
		phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

		for _, m := range mods {
			m.MountRoutes(api)
		}
	})

	if opt.EnableMetrics {
		r.Handle("/metrics", metrics.Handler())
	}

	return Mounted{Modules: mods}
}

// docsTitle overrides the document title when set, e.g. per environment
func docsTitle(title string) swaggerkit.SpecMutator {
	return func(spec map[string]any) {
		if info, ok := spec["info"].(map[string]any); ok && title != "" {
			info["title"] = title
		}
	}
}
