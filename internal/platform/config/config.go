// Package config reads application settings from environment variables
package config

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"clockrelay/internal/platform/config/raw"
	"clockrelay/internal/platform/logger"
)

// Conf is a namespaced view over environment variables
// New() reads global keys, Prefix("CORE_API_") scopes a module
// unlike raw.Env it logs values it has to discard
type Conf struct{ env raw.Env }

// New creates a root Conf (no prefix)
func New() Conf { return Conf{} }

// Prefix creates a child Conf with an additional prefix, e.g. cfg.Prefix("SYNC_")
func (c Conf) Prefix(p string) Conf { return Conf{env: c.env.Prefix(p)} }

func (c Conf) key(k string) string { return c.env.Key(k) }

func (c Conf) lookup(k string) string { return c.env.Lookup(k) }

// may parses key with parse, falling back to def when unset or unparsable
func may[T any](c Conf, key string, def T, kind string, parse func(string) (T, error)) T {
	s := c.lookup(key)
	if s == "" {
		return def
	}
	v, err := parse(s)
	if err != nil {
		logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Interface("default", def).
			Msgf("invalid %s; using default", kind)
		return def
	}
	return v
}

// MustString panics if the given key is missing or empty
func (c Conf) MustString(key string) string {
	v := c.lookup(key)
	if v == "" {
		logger.Get().Panic().Str("key", c.key(key)).Msg("missing required env")
	}
	return v
}

// MayString returns the value or def if missing/empty
func (c Conf) MayString(key, def string) string { return c.env.String(key, def) }

// MayInt returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayInt(key string, def int) int {
	return may(c, key, def, "int", strconv.Atoi)
}

// MayBool returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayBool(key string, def bool) bool {
	return may(c, key, def, "bool", strconv.ParseBool)
}

// MayDuration returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayDuration(key string, def time.Duration) time.Duration {
	return may(c, key, def, "duration", time.ParseDuration)
}

// MayURL returns an absolute http(s) URL or def; a relative or malformed value logs and yields def
func (c Conf) MayURL(key, def string) string {
	return may(c, key, def, "absolute url", func(s string) (string, error) {
		u, err := url.Parse(s)
		if err != nil {
			return "", err
		}
		if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "", strconv.ErrSyntax
		}
		return strings.TrimRight(s, "/"), nil
	})
}

// MayCSV returns the trimmed non-empty items of a comma-separated value; def if none
func (c Conf) MayCSV(key string, def []string) []string {
	s := c.lookup(key)
	if s == "" {
		return def
	}
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
