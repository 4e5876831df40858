// @title         clockrelay API
// @version       0.1.0
// @description   Relays clock in and clock out events into CRM punch records
// @BasePath      /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

//go:generate go tool swag init --v3.1 -g main.go -d .,../../internal -o ../../internal/services/api/docs --parseInternal

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clockrelay/internal/platform/config"
	"clockrelay/internal/platform/logger"
	phttp "clockrelay/internal/platform/net/http"
	"clockrelay/internal/platform/store"

	"clockrelay/internal/services/api"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// service-scoped config for HTTP etc (CORE_API_*)
	root := config.New()
	apiCfg := root.Prefix("CORE_API_")

	pgCfg := root.Prefix("SERVICE_PGSQL_")      // pgCfg lives under SERVICE_PGSQL_*
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_") // chCfg lives under SERVICE_CLICKHOUSE_*
	// bring up logging early
	l := logger.Get()

	chEnabled := chCfg.MayBool("ENABLED", false)
	chURL := ""
	if chEnabled {
		chURL = chCfg.MustString("DBURL")
	}

	// open the platform store (postgres for locks and credentials, CH for the audit trail)
	st, err := store.Open(
		ctx,
		store.Config{
			PG: store.PGConfig{
				Enabled:        true,
				URL:            pgCfg.MustString("DBURL"),
				MaxConns:       int32(pgCfg.MayInt("MAX_CONNS", 8)),
				SlowQuery:      pgCfg.MayDuration("SLOW_QUERY", 500*time.Millisecond),
				LogSQL:         pgCfg.MayBool("LOG_SQL", false),
				ConnectRetries: pgCfg.MayInt("CONNECT_RETRIES", 20),
				PingTimeout:    pgCfg.MayDuration("PING_TIMEOUT", 3*time.Second),
			},
			CH: store.CHConfig{
				Enabled:    chEnabled,
				URL:        chURL,
				ClientName: "clockrelay",
				ClientTag:  "api",
			},
		},
		store.WithLogger(*logger.Get()),
	)
	if err != nil {
		l.Fatal().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	gctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = st.Guard(gctx)
	cancel()
	if err != nil {
		l.Error().Err(err).Msg("store guard failed")
		exit(st, 1)
	}

	// http server (reads CORE_API_PORT and the CORE_API_*_TIMEOUT keys)
	srv := phttp.NewServer(apiCfg)

	// mount our API
	mounted := api.Mount(
		srv.Router(),
		api.Options{
			Config:         apiCfg,
			Store:          st,
			Logger:         l,
			EnableSwagger:  apiCfg.MayBool("SWAGGER", true),
			DocsTitle:      apiCfg.MayString("DOCS_TITLE", ""),
			EnableProfiler: apiCfg.MayBool("PROFILER", false),
			EnableMetrics:  apiCfg.MayBool("METRICS", true),
		},
	)

	if err := mounted.EnsureSchema(ctx); err != nil {
		l.Error().Err(err).Msg("schema bootstrap failed")
		exit(st, 1)
	}

	// run until SIGINT or SIGTERM
	if err := srv.Run(ctx); err != nil {
		l.Error().Err(err).Msg("http server stopped")
		exit(st, 1)
	}
	l.Info().Msg("bye")
}

// exit closes the store before leaving since deferred calls do not run on os.Exit
func exit(st *store.Store, code int) {
	_ = st.Close(context.Background())
	os.Exit(code)
}
