package httpkit

import (
	"compress/flate"
	"net/http"
	"time"

	phttp "clockrelay/internal/platform/net/http"
	"clockrelay/internal/platform/net/middleware"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultSlowRequest = 500 * time.Millisecond
)

// StackOptions tunes the shared middleware stack from config
type StackOptions struct {
	// RateLimit is requests per minute per client IP, 0 disables
	RateLimit int

	// CORSOrigins allows every origin when empty
	CORSOrigins []string

	Timeout     time.Duration
	SlowRequest time.Duration
}

// CommonStack is CommonStackWith zero options
func CommonStack() []func(http.Handler) http.Handler { return CommonStackWith(StackOptions{}) }

// CommonStackWith returns the stack every API route runs behind
// request id and log context come first so everything after can log with them
func CommonStackWith(o StackOptions) []func(http.Handler) http.Handler {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	slow := o.SlowRequest
	if slow <= 0 {
		slow = defaultSlowRequest
	}

	stack := []func(http.Handler) http.Handler{
		middleware.RequestID(),
		middleware.RealIP(),
		middleware.LogContext(),
		middleware.AccessLog(slow),
		middleware.Recover,
		middleware.RateLimit(middleware.RateLimitOptions{Requests: o.RateLimit, Window: time.Minute}),
		middleware.NoCache(),
		middleware.AllowContentType("application/json"),
		middleware.CORS(middleware.CORSOptions{AllowedOrigins: o.CORSOrigins}),
		middleware.Compress(flate.BestSpeed),
		middleware.Heartbeat("/health"),
	}
	return append(stack, middleware.StripSlashes(), middleware.Timeout(timeout))
}

// Auth renders auth failures with the platform JSON writer
func Auth(p middleware.AuthPort) func(http.Handler) http.Handler {
	return middleware.Auth(p, phttp.JSON)
}
