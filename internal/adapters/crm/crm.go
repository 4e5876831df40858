// Package crm defines the system of record surface the clock relay writes to
//
// The CRM has no idempotent writes and no transactions. Callers serialize
// per subject themselves and must treat every read as possibly stale.
package crm

import (
	"context"
	"time"

	perr "clockrelay/internal/platform/errors"
)

// Error kinds for failures at the CRM boundary
const (
	KindAuth      = "ExternalAuthError"
	KindTransient = "ExternalTransientError"
	KindRejected  = "ExternalRejectedError"
)

// Location is where a punch happened
type Location string

// Locations the CRM picklist accepts
const (
	LocationRemote   Location = "Remote"
	LocationInOffice Location = "In Office"
)

// LocationFor maps the client flag onto the picklist value
func LocationFor(remote bool) Location {
	if remote {
		return LocationRemote
	}
	return LocationInOffice
}

// Credential is what a CRM call needs to authenticate
type Credential struct {
	AccessToken string
	InstanceURL string
}

// Health reports whether the CRM is currently usable, nil meaning yes
type Health interface {
	Healthy(ctx context.Context) error
}

// CredentialSource resolves a tenant to its current credential
// implementations return an error with code NotFound when none is stored
type CredentialSource interface {
	Credentials(ctx context.Context, tenant string) (Credential, error)
}

// Record is a punch as stored in the CRM
type Record struct {
	ID        string     `json:"recordId"`
	Name      string     `json:"name,omitempty"`
	SubjectID string     `json:"subjectId"`
	PunchIn   time.Time  `json:"punchIn"`
	PunchOut  *time.Time `json:"punchOut,omitempty"`
	Location  Location   `json:"locationType,omitempty"`
}

// Active reports whether the punch has no clock-out yet
func (r Record) Active() bool { return r.PunchOut == nil }

// NewRecord is the payload for creating an active punch
type NewRecord struct {
	Name      string
	SubjectID string
	PunchIn   time.Time
	Location  Location
}

// AuthError marks an expired or invalid credential
func AuthError(orig error, format string, a ...any) error {
	return perr.WrapKind(orig, perr.ErrorCodeUnauthorized, KindAuth, format, a...)
}

// TransientError marks a failure where a later retry may succeed
func TransientError(orig error, format string, a ...any) error {
	return perr.WrapKind(orig, perr.ErrorCodeUnavailable, KindTransient, format, a...)
}

// RejectedError marks a request the CRM understood and refused
func RejectedError(orig error, format string, a ...any) error {
	return perr.WrapKind(orig, perr.ErrorCodeExternal, KindRejected, format, a...)
}

// IsExternal reports whether err came from the CRM boundary
func IsExternal(err error) bool {
	switch perr.KindOf(err) {
	case KindAuth, KindTransient, KindRejected:
		return true
	}
	return false
}
