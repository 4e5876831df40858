// Package domain defines the clock sync types and the ports the reconciler depends on
package domain

import (
	"context"
	"time"

	"clockrelay/internal/adapters/crm"
)

// Error kinds the reconciler raises after reading CRM state
const (
	KindClockInMismatch = "ClockInMismatch"
	KindNoActiveRecord  = "NoActiveRecord"
)

// ServicePort is what the HTTP layer calls
type ServicePort interface {
	Sync(ctx context.Context, in SyncInput) (SyncResult, error)
	History(ctx context.Context, subjectID string, limit int) ([]HistoryItem, error)
}

// Locker grants per subject mutual exclusion
// ok == false means another sync holds the subject
type Locker interface {
	Acquire(ctx context.Context, subjectID string) (token string, ok bool, err error)
	Release(ctx context.Context, subjectID string) error
}

// RecordGateway is the CRM surface the reconciler writes through
type RecordGateway interface {
	FindActive(ctx context.Context, tenant, subjectID string) (*crm.Record, error)
	Create(ctx context.Context, tenant string, r crm.NewRecord) (string, error)
	PatchPunchOut(ctx context.Context, tenant, recordID string, out time.Time) error
}

// AuditSink receives one Event per finished sync
// failures are logged by the caller and never fail the sync
type AuditSink interface {
	Record(ctx context.Context, e Event) error
}

// EventReader reads back audit events, newest first
type EventReader interface {
	Recent(ctx context.Context, subjectID string, limit int) ([]Event, error)
}

// Event is the audit row for one sync decision
type Event struct {
	At       time.Time
	Tenant   string
	Subject  string
	Outcome  string
	RecordID string
	Kind     string
	Duration time.Duration
}
