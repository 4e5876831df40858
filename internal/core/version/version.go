// Package version reports what build is running
package version

import (
	"runtime/debug"
	"sync"
)

// BuildInfo is served on /meta/version and sent as the CRM user agent
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// set with -ldflags "-X clockrelay/internal/core/version.version=v0.1.0" and friends
var (
	version = "dev"
	commit  = ""
	date    = "unknown"
)

var vcsCommit = sync.OnceValue(func() string {
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				return s.Value[:7]
			}
		}
	}
	return "unknown"
})

// Info returns the build stamp; without an ldflags commit it falls back to
// the vcs revision the toolchain embedded
func Info() BuildInfo {
	c := commit
	if c == "" {
		c = vcsCommit()
	}
	return BuildInfo{
		Service: "clockrelay-api",
		Version: version,
		Commit:  c,
		Date:    date,
	}
}
