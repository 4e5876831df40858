// Package service reconciles clock events against the CRM
//
// The CRM is the only source of truth. Every decision is derived from a
// fresh FindActive taken inside the subject lock, and at most one write is
// issued per sync. Once a conflict is detected no write happens at all.
package service

import (
	"context"
	"strings"
	"time"

	"clockrelay/internal/adapters/crm"
	"clockrelay/internal/core/clocktime"
	"clockrelay/internal/modkit/scope"
	perr "clockrelay/internal/platform/errors"
	"clockrelay/internal/platform/logger"
	"clockrelay/internal/platform/metrics"
	dom "clockrelay/internal/services/clocksync/domain"
)

const (
	defaultTolerance = 60 * time.Second
	defaultTenant    = "default"
	lockPollEvery    = 100 * time.Millisecond
	defaultHistory   = 50
	maxHistory       = 500
)

// Service is the public service port
type Service interface{ dom.ServicePort }

// Options control reconciliation
type Options struct {
	// Tolerance is the max distance between the active punch in and the
	// clock-in carried by a clock-out, inclusive
	Tolerance time.Duration

	// DefaultTenant is used when the request names none
	DefaultTenant string

	// ClockOutLockWait lets a clock-out wait for a held lock instead of
	// returning in_progress at once; zero disables waiting
	ClockOutLockWait time.Duration

	Normalizer *clocktime.Normalizer

	// Audit and History are optional
	Audit   dom.AuditSink
	History dom.EventReader
}

// Svc implements the reconciler
type Svc struct {
	locks dom.Locker
	gw    dom.RecordGateway
	norm  *clocktime.Normalizer
	audit dom.AuditSink
	hist  dom.EventReader
	opt   Options
	now   func() time.Time
}

var _ Service = (*Svc)(nil)

// New constructs the service
func New(locks dom.Locker, gw dom.RecordGateway, opt Options) *Svc {
	if locks == nil {
		panic("clocksync.Service requires a non nil Locker")
	}
	if gw == nil {
		panic("clocksync.Service requires a non nil RecordGateway")
	}
	if opt.Tolerance <= 0 {
		opt.Tolerance = defaultTolerance
	}
	if strings.TrimSpace(opt.DefaultTenant) == "" {
		opt.DefaultTenant = defaultTenant
	}
	if opt.Normalizer == nil {
		opt.Normalizer = clocktime.New()
	}
	return &Svc{
		locks: locks,
		gw:    gw,
		norm:  opt.Normalizer,
		audit: opt.Audit,
		hist:  opt.History,
		opt:   opt,
		now:   time.Now,
	}
}

// Sync runs one clock event through normalize, lock, reconcile and release
func (s *Svc) Sync(ctx context.Context, in dom.SyncInput) (res dom.SyncResult, err error) {
	start := s.now()
	subject := strings.TrimSpace(in.SubjectID)
	tenant := strings.TrimSpace(in.Tenant)
	if tenant == "" {
		tenant = s.opt.DefaultTenant
	}
	ctx = scope.With(ctx, map[string]string{"subject": subject, "tenant": tenant})
	log := logger.C(ctx).With().Str("subject", subject).Str("tenant", tenant).Logger()

	defer func() {
		elapsed := s.now().Sub(start)
		label := string(res.Outcome)
		if err != nil {
			label = errorLabel(err)
			log.Warn().Err(err).Str("kind", perr.KindOf(err)).Dur("elapsed", elapsed).Msg("clock sync failed")
		} else {
			log.Info().Str("outcome", label).Str("record_id", res.RecordID).Dur("elapsed", elapsed).Msg("clock sync done")
		}
		metrics.RecordSync(label, elapsed)
		s.record(ctx, dom.Event{
			At:       start,
			Tenant:   tenant,
			Subject:  subject,
			Outcome:  label,
			RecordID: res.RecordID,
			Kind:     perr.KindOf(err),
			Duration: elapsed,
		})
	}()

	if subject == "" {
		return dom.SyncResult{}, perr.WithField(perr.Validationf("subjectId is required"), "subjectId")
	}

	// invalid input never touches the lock table or the CRM
	norm, err := s.norm.Normalize(in.ClockIn, in.ClockOut, in.TimezoneHint)
	if err != nil {
		return dom.SyncResult{}, err
	}

	ok, err := s.acquire(ctx, subject, norm.HasOut())
	if err != nil {
		return dom.SyncResult{}, perr.FromPostgres(err, "acquire sync lock")
	}
	if !ok {
		metrics.RecordLockContention()
		msg := "sync already in progress"
		if norm.HasOut() {
			// the clock-out was not applied and the client has to send it again
			msg = "sync already in progress, clock-out not applied, retry"
		}
		return dom.SyncResult{
			Success: true,
			Outcome: dom.OutcomeInProgress,
			Message: msg,
		}, nil
	}
	defer func() {
		// Release detaches from ctx itself; an error here leaves the row to the sweep
		if rerr := s.locks.Release(ctx, subject); rerr != nil {
			log.Error().Err(rerr).Msg("sync lock release failed, sweep will reclaim")
		}
	}()

	res, err = s.reconcile(ctx, tenant, subject, in.IsRemote, norm)
	if err != nil && crm.IsExternal(err) {
		// keep the kind and message, but every external failure is a 500 to the client
		err = perr.WrapKind(err, perr.ErrorCodeExternal, perr.KindOf(err), "%s", perr.WireFrom(err).Message)
	}
	return res, err
}

// acquire tries once, or polls until ClockOutLockWait for a clock-out
func (s *Svc) acquire(ctx context.Context, subject string, clockOut bool) (bool, error) {
	_, ok, err := s.locks.Acquire(ctx, subject)
	if err != nil || ok || !clockOut || s.opt.ClockOutLockWait <= 0 {
		return ok, err
	}

	deadline := time.NewTimer(s.opt.ClockOutLockWait)
	defer deadline.Stop()
	tick := time.NewTicker(lockPollEvery)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case <-tick.C:
			if _, ok, err := s.locks.Acquire(ctx, subject); err != nil || ok {
				return ok, err
			}
		}
	}
}

// reconcile must only be called while holding the subject lock
func (s *Svc) reconcile(ctx context.Context, tenant, subject string, remote bool, n clocktime.Normalized) (dom.SyncResult, error) {
	active, err := s.gw.FindActive(ctx, tenant, subject)
	if err != nil {
		return dom.SyncResult{}, err
	}

	if !n.HasOut() {
		if active != nil {
			return dom.SyncResult{
				Success:        true,
				Outcome:        dom.OutcomeAlreadyActive,
				RecordID:       active.ID,
				Message:        "already active",
				ExistingRecord: active,
			}, nil
		}
		id, err := s.gw.Create(ctx, tenant, crm.NewRecord{
			Name:      clocktime.RecordName(subject, n.In, n.Display),
			SubjectID: subject,
			PunchIn:   n.In,
			Location:  crm.LocationFor(remote),
		})
		if err != nil {
			return dom.SyncResult{}, err
		}
		return dom.SyncResult{Success: true, Outcome: dom.OutcomeCreated, RecordID: id}, nil
	}

	if active == nil {
		return dom.SyncResult{}, perr.NewKind(perr.ErrorCodeNotFound, dom.KindNoActiveRecord,
			"no active punch for %s", subject)
	}
	if d := absDur(active.PunchIn.Sub(n.In)); d > s.opt.Tolerance {
		return dom.SyncResult{}, perr.WithField(perr.NewKind(perr.ErrorCodeBusinessRule, dom.KindClockInMismatch,
			"clockIn %s does not match active punch %s started %s (off by %s, tolerance %s)",
			n.In.Format(time.RFC3339), active.ID, active.PunchIn.Format(time.RFC3339), d, s.opt.Tolerance), "clockIn")
	}

	if err := s.gw.PatchPunchOut(ctx, tenant, active.ID, *n.Out); err != nil {
		return dom.SyncResult{}, err
	}
	return dom.SyncResult{Success: true, Outcome: dom.OutcomeClockedOut, RecordID: active.ID}, nil
}

// History lists recent sync decisions for a subject
func (s *Svc) History(ctx context.Context, subjectID string, limit int) ([]dom.HistoryItem, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, perr.WithField(perr.Validationf("subjectId is required"), "subjectId")
	}
	if s.hist == nil {
		return []dom.HistoryItem{}, nil
	}
	if limit <= 0 {
		limit = defaultHistory
	}
	if limit > maxHistory {
		limit = maxHistory
	}

	evs, err := s.hist.Recent(ctx, subjectID, limit)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "read sync history")
	}
	out := make([]dom.HistoryItem, 0, len(evs))
	for _, e := range evs {
		out = append(out, dom.HistoryItem{
			At:         e.At,
			Tenant:     e.Tenant,
			Outcome:    e.Outcome,
			RecordID:   e.RecordID,
			Kind:       e.Kind,
			DurationMs: e.Duration.Milliseconds(),
		})
	}
	return out, nil
}

func (s *Svc) record(ctx context.Context, e dom.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(context.WithoutCancel(ctx), e); err != nil {
		logger.C(ctx).Warn().Err(err).Msg("sync audit write failed")
	}
}

func errorLabel(err error) string {
	if k := perr.KindOf(err); k != "" {
		return k
	}
	return "error"
}

func absDur(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
