// Package repo persists clock sync audit events
package repo

import (
	"context"
	"time"

	"clockrelay/internal/platform/store"
	dom "clockrelay/internal/services/clocksync/domain"
)

// EventsTable holds one row per sync decision
const EventsTable = "clock_sync_events"

// Audit is the read and write surface for sync events
type Audit interface {
	dom.AuditSink
	Recent(ctx context.Context, subject string, limit int) ([]dom.Event, error)
	EnsureSchema(ctx context.Context) error
}

// CH stores events in ClickHouse
type CH struct{ ch store.Clickhouse }

// NewClickhouse returns a ClickHouse backed Audit
func NewClickhouse(ch store.Clickhouse) *CH {
	if ch == nil {
		panic("clocksync audit requires a non nil clickhouse seam")
	}
	return &CH{ch: ch}
}

// EnsureSchema creates the events table when missing
func (r *CH) EnsureSchema(ctx context.Context) error {
	return r.ch.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+EventsTable+` (
			ts          DateTime64(3, 'UTC'),
			tenant      LowCardinality(String),
			subject     String,
			outcome     LowCardinality(String),
			record_id   String,
			kind        LowCardinality(String),
			duration_ms UInt32
		)
		ENGINE = MergeTree
		PARTITION BY toYYYYMM(ts)
		ORDER BY (tenant, subject, ts)
	`)
}

// Record appends one event
func (r *CH) Record(ctx context.Context, e dom.Event) error {
	return r.ch.Insert(ctx, EventsTable, [][]any{{
		e.At.UTC(),
		e.Tenant,
		e.Subject,
		e.Outcome,
		e.RecordID,
		e.Kind,
		uint32(e.Duration / time.Millisecond),
	}})
}

// Recent returns the newest events for subject, newest first
func (r *CH) Recent(ctx context.Context, subject string, limit int) ([]dom.Event, error) {
	rows, err := r.ch.Query(ctx, `
		SELECT ts, tenant, subject, outcome, record_id, kind, duration_ms
		FROM `+EventsTable+`
		WHERE subject = ?
		ORDER BY ts DESC
		LIMIT ?
	`, subject, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dom.Event
	for rows.Next() {
		var (
			e  dom.Event
			ms uint32
		)
		if err := rows.Scan(&e.At, &e.Tenant, &e.Subject, &e.Outcome, &e.RecordID, &e.Kind, &ms); err != nil {
			return nil, err
		}
		e.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// Noop drops events when ClickHouse is disabled
type Noop struct{}

// Record does nothing
func (Noop) Record(context.Context, dom.Event) error { return nil }

// Recent always returns no events
func (Noop) Recent(context.Context, string, int) ([]dom.Event, error) { return nil, nil }

// EnsureSchema does nothing
func (Noop) EnsureSchema(context.Context) error { return nil }
