package http

import (
	"context"
	"errors"
	"net"
	stdhttp "net/http"
	"strings"
	"time"

	"clockrelay/internal/platform/config"
	"clockrelay/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

// Server owns the root chi mux and the listener
type Server struct {
	mux   *chi.Mux
	srv   *stdhttp.Server
	grace time.Duration
}

// NewServer reads PORT (":4000" or "4000"), READ_HEADER_TIMEOUT,
// WRITE_TIMEOUT, IDLE_TIMEOUT and SHUTDOWN_GRACE from cfg
func NewServer(cfg config.Conf) *Server {
	addr := cfg.MayString("PORT", ":4000")
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	mux := chi.NewRouter()
	return &Server{
		mux:   mux,
		grace: cfg.MayDuration("SHUTDOWN_GRACE", 15*time.Second),
		srv: &stdhttp.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: cfg.MayDuration("READ_HEADER_TIMEOUT", 10*time.Second),
			WriteTimeout:      cfg.MayDuration("WRITE_TIMEOUT", 0),
			IdleTimeout:       cfg.MayDuration("IDLE_TIMEOUT", 2*time.Minute),
		},
	}
}

// Router mounts onto the root mux
func (s *Server) Router() Router { return AdaptChi(s.mux) }

// Addr is the configured listen address
func (s *Server) Addr() string { return s.srv.Addr }

// Run listens on Addr until ctx is cancelled, then drains for up to the grace period
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := logger.Named("http")
	log.Info().Str("addr", ln.Addr().String()).Msg("http listening")

	errc := make(chan error, 1)
	go func() { errc <- s.srv.Serve(ln) }()

	select {
	case err := <-errc:
		return ignoreClosed(err)
	case <-ctx.Done():
	}

	log.Info().Dur("grace", s.grace).Msg("http shutting down")
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.grace)
	defer cancel()
	if err := s.srv.Shutdown(sctx); err != nil {
		return err
	}
	return ignoreClosed(<-errc)
}

func ignoreClosed(err error) error {
	if errors.Is(err, stdhttp.ErrServerClosed) {
		return nil
	}
	return err
}
