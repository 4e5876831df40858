package middleware

import (
	"net/http"

	"clockrelay/internal/platform/logger"
	pnet "clockrelay/internal/platform/net"
)

// TenantHeader optionally scopes request logs to a tenant
const TenantHeader = "X-Tenant"

// LogContext binds the request id (and tenant header when sent) into the
// request context so logger.C picks them up downstream
// must run after RequestID
func LogContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.WithRequest(r.Context(), pnet.RequestID(r.Context()), r.Header.Get(TenantHeader))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
