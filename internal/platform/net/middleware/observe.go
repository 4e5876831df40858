package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	perr "clockrelay/internal/platform/errors"
	"clockrelay/internal/platform/logger"
	"clockrelay/internal/platform/metrics"
	pnet "clockrelay/internal/platform/net"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// AccessLog logs and times every request by its chi route pattern
// requests at or above slow are logged at warn; zero disables that
func AccessLog(slow time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			elapsed := time.Since(start)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)
			metrics.ObserveRequest(route, r.Method, status, elapsed)

			log := logger.C(r.Context())
			evt := log.Info()
			switch {
			case status >= http.StatusInternalServerError:
				evt = log.Error()
			case slow > 0 && elapsed >= slow:
				evt = log.Warn().Bool("slow", true)
			}
			evt.Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", route).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", elapsed).
				Msg("request done")
		})
	}
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

// Recover turns a handler panic into the JSON 500 envelope
// http.ErrAbortHandler is re-raised so net/http can drop the connection
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(v)
			}
			metrics.RecordPanic()
			logger.C(r.Context()).Error().
				Interface("panic", v).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			reqID := pnet.RequestID(r.Context())
			if reqID != "" {
				w.Header().Set("X-Request-ID", reqID)
			}
			writeError(w, r, perr.PanicErrf("panic recovered"))
		}()
		next.ServeHTTP(w, r)
	})
}

// writeError renders err as the envelope for middleware that runs before httpkit
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := pnet.Error(err, pnet.RequestID(r.Context()))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
