// Package logger is the process wide zerolog root plus request scoped children
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"clockrelay/internal/platform/config/raw"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Options configures the root logger
type Options struct {
	Level        string
	Format       string // json or console
	Service      string
	Writer       io.Writer
	WithCaller   bool
	SampleEvery  int
	StaticFields map[string]string
}

// FromEnv reads LOG_* through the raw view, which does not log
func FromEnv() Options {
	rc := raw.New().Prefix("LOG_")
	return Options{
		Level:       rc.String("LEVEL", "info"),
		Format:      strings.ToLower(rc.String("FORMAT", "json")),
		Service:     rc.String("SERVICE", "clockrelay-api"),
		WithCaller:  rc.Bool("CALLER", false),
		SampleEvery: rc.Int("SAMPLE_EVERY", 0),
	}
}

// Logger is zerolog's logger
type Logger = zerolog.Logger

var (
	once sync.Once
	root atomic.Pointer[zerolog.Logger]
)

// Get returns the root logger, initializing it from the environment on first use
func Get() *Logger {
	if l := root.Load(); l != nil {
		return l
	}
	Init(FromEnv())
	return root.Load()
}

// Init builds the root logger; only the first call has any effect
func Init(opt Options) {
	once.Do(func() {
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
		zerolog.TimeFieldFormat = time.RFC3339Nano

		var w io.Writer = os.Stdout
		if opt.Writer != nil {
			w = opt.Writer
		}
		if opt.Format == "console" {
			w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		}

		ctx := zerolog.New(w).Level(parseLevel(opt.Level)).With().Timestamp()
		if bi, ok := debug.ReadBuildInfo(); ok {
			ctx = ctx.Str("go_version", bi.GoVersion)
		}
		if opt.Service != "" {
			ctx = ctx.Str("service", opt.Service)
		}
		for k, v := range opt.StaticFields {
			ctx = ctx.Str(k, v)
		}
		if opt.WithCaller {
			ctx = ctx.Caller()
		}

		log := ctx.Logger()
		if opt.SampleEvery > 1 {
			log = log.Sample(&zerolog.BasicSampler{N: uint32(opt.SampleEvery)})
		}
		root.Store(&log)
	})
}

// parseLevel falls back to info on anything zerolog does not know
func parseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

type ctxKey int

const (
	keyRequestID ctxKey = iota
	keyTenant
)

// WithRequest stores the request id and tenant for C; empty values are skipped
func WithRequest(ctx context.Context, reqID, tenant string) context.Context {
	if reqID != "" {
		ctx = context.WithValue(ctx, keyRequestID, reqID)
	}
	if tenant != "" {
		ctx = context.WithValue(ctx, keyTenant, tenant)
	}
	return ctx
}

// C returns a child of the root carrying request_id and tenant from ctx
func C(ctx context.Context) *Logger {
	b := Get().With()
	if s, _ := ctx.Value(keyRequestID).(string); s != "" {
		b = b.Str("request_id", s)
	}
	if s, _ := ctx.Value(keyTenant).(string); s != "" {
		b = b.Str("tenant", s)
	}
	l := b.Logger()
	return &l
}

// Named returns a child of the root with a component field
func Named(component string) *Logger {
	if component == "" {
		return Get()
	}
	l := Get().With().Str("component", component).Logger()
	return &l
}
