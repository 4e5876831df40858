// Package raw reads prefixed environment variables without logging
// the logger bootstraps from it, so nothing here may import the logger
package raw

import (
	"os"
	"strconv"
	"strings"
)

// Env is a prefixed view over the process environment
type Env struct{ prefix string }

// New is the unprefixed root view
func New() Env { return Env{} }

// Prefix nests p under the current prefix
func (e Env) Prefix(p string) Env { return Env{prefix: e.prefix + p} }

// Key is the full variable name for k
func (e Env) Key(k string) string { return e.prefix + k }

// Lookup returns the trimmed value of k, "" when unset
func (e Env) Lookup(k string) string { return strings.TrimSpace(os.Getenv(e.Key(k))) }

// String returns k or def when unset
func (e Env) String(k, def string) string {
	if v := e.Lookup(k); v != "" {
		return v
	}
	return def
}

// Bool accepts strconv.ParseBool spellings plus yes/no; anything else is def
func (e Env) Bool(k string, def bool) bool {
	switch v := strings.ToLower(e.Lookup(k)); v {
	case "yes", "on":
		return true
	case "no", "off":
		return false
	default:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	}
}

// Int returns k as a non negative int; unset or invalid is def
func (e Env) Int(k string, def int) int {
	n, err := strconv.Atoi(e.Lookup(k))
	if err != nil || n < 0 {
		return def
	}
	return n
}
