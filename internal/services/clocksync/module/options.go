package module

import (
	"time"

	"clockrelay/internal/adapters/crm/salesforce"
	"clockrelay/internal/platform/config"
)

// Options controls reconciliation, the subject lock and the CRM client
type Options struct {
	MatchTolerance   time.Duration
	DefaultTenant    string
	DisplayZone      string
	ClockOutLockWait time.Duration

	LockStaleAfter     time.Duration
	LockReleaseTimeout time.Duration
	LockTimeout        time.Duration

	// CRM client
	APIVersion      string
	Timeout         time.Duration
	Fields          salesforce.Fields
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// FromConfig reads SYNC_* and CRM_* values from process config/env
func FromConfig(cfg config.Conf) Options {
	sc := cfg.Prefix("SYNC_")
	cc := cfg.Prefix("CRM_")
	def := salesforce.DefaultFields()

	return Options{
		MatchTolerance:   sc.MayDuration("MATCH_TOLERANCE", 60*time.Second),
		DefaultTenant:    sc.MayString("DEFAULT_TENANT", "default"),
		DisplayZone:      sc.MayString("DISPLAY_ZONE", "UTC"),
		ClockOutLockWait: sc.MayDuration("CLOCKOUT_LOCK_WAIT", 0),

		LockStaleAfter:     sc.MayDuration("LOCK_STALE_AFTER", time.Hour),
		LockReleaseTimeout: sc.MayDuration("RELEASE_TIMEOUT", 5*time.Second),
		LockTimeout:        sc.MayDuration("LOCK_TIMEOUT", 2*time.Second),

		APIVersion: cc.MayString("API_VERSION", "v59.0"),
		Timeout:    cc.MayDuration("TIMEOUT", 15*time.Second),
		Fields: salesforce.Fields{
			Object:   cc.MayString("OBJECT", def.Object),
			Subject:  cc.MayString("FIELD_SUBJECT", def.Subject),
			PunchIn:  cc.MayString("FIELD_PUNCH_IN", def.PunchIn),
			PunchOut: cc.MayString("FIELD_PUNCH_OUT", def.PunchOut),
			Location: cc.MayString("FIELD_LOCATION", def.Location),
			Name:     cc.MayString("FIELD_NAME", def.Name),
		},
		BreakerFailures: cc.MayInt("BREAKER_FAILURES", 5),
		BreakerTimeout:  cc.MayDuration("BREAKER_TIMEOUT", 30*time.Second),
	}
}

// displayZone falls back to UTC for an unknown zone name
func (o Options) displayZone() *time.Location {
	if loc, err := time.LoadLocation(o.DisplayZone); err == nil && o.DisplayZone != "" {
		return loc
	}
	return time.UTC
}
