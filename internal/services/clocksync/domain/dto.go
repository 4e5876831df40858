package domain

import (
	"time"

	"clockrelay/internal/adapters/crm"
)

// SyncInput is the body of POST /sync-clock
// clockIn is checked by the normalizer so a missing value reports InvalidInstant
type SyncInput struct {
	SubjectID    string `json:"subjectId" validate:"required,max=320" example:"jane.doe@example.com"`
	ClockIn      string `json:"clockIn" example:"2024-01-01T09:00:00Z"`
	ClockOut     string `json:"clockOut,omitempty" example:"2024-01-01T17:30:00Z"`
	IsRemote     bool   `json:"isRemote" example:"true"`
	TimezoneHint string `json:"timezoneHint,omitempty" validate:"omitempty,max=64" example:"America/New_York"`
	Tenant       string `json:"tenant,omitempty" validate:"omitempty,tenant" example:"default"`
}

// Outcome names what a successful sync did
type Outcome string

// Outcomes of a successful sync
const (
	OutcomeCreated       Outcome = "created"
	OutcomeAlreadyActive Outcome = "already_active"
	OutcomeClockedOut    Outcome = "clocked_out"
	OutcomeInProgress    Outcome = "in_progress"
)

// SyncResult is the success payload of POST /sync-clock
type SyncResult struct {
	Success        bool        `json:"success"`
	Outcome        Outcome     `json:"outcome"`
	RecordID       string      `json:"recordId,omitempty"`
	Message        string      `json:"message,omitempty"`
	ExistingRecord *crm.Record `json:"existingRecord,omitempty"`
}

// HistoryItem is one audit event as returned by GET /sync-events/{subjectId}
type HistoryItem struct {
	At         time.Time `json:"at"`
	Tenant     string    `json:"tenant"`
	Outcome    string    `json:"outcome"`
	RecordID   string    `json:"recordId,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	DurationMs int64     `json:"durationMs"`
}
