package module

import (
	"time"

	"clockrelay/internal/platform/config"
)

// Options controls the OAuth client and the token admin routes
type Options struct {
	ClientID        string
	ClientSecret    string
	RedirectURL     string
	LoginURL        string
	Scopes          []string
	StateSecret     string
	StateTTL        time.Duration
	SuccessRedirect string
	Timeout         time.Duration

	// AdminToken guards /tokens with a static bearer when set
	AdminToken string

	DefaultTenant string
}

// FromConfig reads OAUTH_* values from process config/env
func FromConfig(cfg config.Conf) Options {
	oc := cfg.Prefix("OAUTH_")
	return Options{
		ClientID:        oc.MayString("CLIENT_ID", ""),
		ClientSecret:    oc.MayString("CLIENT_SECRET", ""),
		RedirectURL:     oc.MayString("REDIRECT_URL", ""),
		LoginURL:        oc.MayURL("LOGIN_URL", "https://login.salesforce.com"),
		Scopes:          oc.MayCSV("SCOPES", []string{"api", "refresh_token"}),
		StateSecret:     oc.MayString("STATE_SECRET", ""),
		StateTTL:        oc.MayDuration("STATE_TTL", 10*time.Minute),
		SuccessRedirect: oc.MayString("SUCCESS_REDIRECT", ""),
		Timeout:         oc.MayDuration("TIMEOUT", 15*time.Second),
		AdminToken:      oc.MayString("ADMIN_TOKEN", ""),

		DefaultTenant: cfg.Prefix("SYNC_").MayString("DEFAULT_TENANT", "default"),
	}
}
