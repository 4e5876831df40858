package httpkit

import (
	"net/http"
	"strings"

	perrs "clockrelay/internal/platform/errors"
)

// TokenFunc checks a bearer token and returns the caller id
type TokenFunc func(token string) (userID string, err error)

// Port implements middleware.AuthPort over a TokenFunc
type Port struct {
	parse TokenFunc
}

// NewPortFunc builds a Port from a simple parser function
func NewPortFunc(fn TokenFunc) *Port {
	return &Port{parse: fn}
}

// Parse reads "Authorization: Bearer <token>" with a case-insensitive scheme
// every failure, including a parser error, is a plain 401 so token details never leak
func (p *Port) Parse(r *http.Request) (string, error) {
	s := strings.TrimSpace(r.Header.Get("Authorization"))
	const scheme = "bearer"
	if len(s) < len(scheme) || !strings.EqualFold(s[:len(scheme)], scheme) {
		return "", perrs.Unauthorizedf("missing bearer token")
	}
	raw := strings.TrimSpace(s[len(scheme):])
	if raw == "" {
		return "", perrs.Unauthorizedf("missing bearer token")
	}
	if p.parse == nil {
		return "", perrs.Unauthorizedf("invalid bearer token")
	}
	uid, err := p.parse(raw)
	if err != nil {
		return "", perrs.Unauthorizedf("invalid bearer token")
	}
	return uid, nil
}
