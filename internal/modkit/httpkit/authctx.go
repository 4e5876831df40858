package httpkit

import (
	"net/http"

	perrs "clockrelay/internal/platform/errors"
	pnet "clockrelay/internal/platform/net"
)

// User returns the id the auth middleware put on the request context
func User(r *http.Request) (string, error) {
	uid := pnet.UserID(r.Context())
	if uid == "" {
		return "", perrs.Unauthorizedf("missing bearer token")
	}
	return uid, nil
}
