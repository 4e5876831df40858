package middleware

import (
	"net/http"
	"time"

	perr "clockrelay/internal/platform/errors"

	"github.com/go-chi/httprate"
)

// RateLimitOptions configures the per client limiter
type RateLimitOptions struct {
	// Requests allowed per Window, <= 0 disables limiting
	Requests int
	Window   time.Duration

	// KeyFunc picks the bucket key, defaults to the client IP
	KeyFunc httprate.KeyFunc
}

// RateLimit wraps go-chi/httprate and answers 429 with the JSON envelope
func RateLimit(o RateLimitOptions) func(http.Handler) http.Handler {
	if o.Requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if o.Window <= 0 {
		o.Window = time.Minute
	}
	key := o.KeyFunc
	if key == nil {
		key = httprate.KeyByIP
	}
	return httprate.Limit(o.Requests, o.Window,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(limited),
	)
}

func limited(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, perr.New(perr.ErrorCodeTooManyRequests, "rate limit exceeded"))
}
