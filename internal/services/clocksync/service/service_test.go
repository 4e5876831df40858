package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clockrelay/internal/adapters/crm"
	perr "clockrelay/internal/platform/errors"
	dom "clockrelay/internal/services/clocksync/domain"

	"github.com/stretchr/testify/require"
)

// memLock is an in process Locker with the same insert-if-absent contract
type memLock struct {
	mu         sync.Mutex
	held       map[string]bool
	acquires   atomic.Int32
	releases   atomic.Int32
	acquireErr error
}

func newMemLock() *memLock { return &memLock{held: map[string]bool{}} }

func (l *memLock) Acquire(_ context.Context, subject string) (string, bool, error) {
	l.acquires.Add(1)
	if l.acquireErr != nil {
		return "", false, l.acquireErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[subject] {
		return "", false, nil
	}
	l.held[subject] = true
	return "tok-" + subject, true, nil
}

func (l *memLock) Release(_ context.Context, subject string) error {
	l.releases.Add(1)
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, subject)
	return nil
}

func (l *memLock) isHeld(subject string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[subject]
}

// memCRM is a CRM with no transactions, like the real one
type memCRM struct {
	mu      sync.Mutex
	records []crm.Record
	nextID  int

	finds   atomic.Int32
	creates atomic.Int32
	patches atomic.Int32

	// delay widens the query-then-write window
	delay   time.Duration
	findErr error
	// gate blocks FindActive until closed when set
	gate chan struct{}
}

func (c *memCRM) FindActive(ctx context.Context, _ string, subject string) (*crm.Record, error) {
	c.finds.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	if c.findErr != nil {
		return nil, c.findErr
	}
	c.mu.Lock()
	var act []crm.Record
	for _, r := range c.records {
		if r.SubjectID == subject && r.Active() {
			act = append(act, r)
		}
	}
	c.mu.Unlock()
	time.Sleep(c.delay)
	if len(act) == 0 {
		return nil, nil
	}
	sort.Slice(act, func(i, j int) bool { return act[i].PunchIn.After(act[j].PunchIn) })
	r := act[0]
	return &r, nil
}

func (c *memCRM) Create(_ context.Context, _ string, r crm.NewRecord) (string, error) {
	c.creates.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := fmt.Sprintf("a01%06d", c.nextID)
	c.records = append(c.records, crm.Record{ID: id, Name: r.Name, SubjectID: r.SubjectID, PunchIn: r.PunchIn, Location: r.Location})
	return id, nil
}

func (c *memCRM) PatchPunchOut(_ context.Context, _ string, id string, out time.Time) error {
	c.patches.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.records {
		if c.records[i].ID == id {
			o := out
			c.records[i].PunchOut = &o
			return nil
		}
	}
	return crm.RejectedError(nil, "no record %s", id)
}

func (c *memCRM) seedActive(subject string, in time.Time) string {
	id, _ := c.Create(context.Background(), "", crm.NewRecord{SubjectID: subject, PunchIn: in, Location: crm.LocationRemote})
	c.creates.Store(0)
	return id
}

func (c *memCRM) activeCount(subject string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.records {
		if r.SubjectID == subject && r.Active() {
			n++
		}
	}
	return n
}

func (c *memCRM) writes() int32 { return c.creates.Load() + c.patches.Load() }

type spyAudit struct {
	mu     sync.Mutex
	events []dom.Event
	err    error
}

func (a *spyAudit) Record(_ context.Context, e dom.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return a.err
}

const subject = "jane.doe@example.com"

var t0 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func rfc(t time.Time) string { return t.Format(time.RFC3339Nano) }

func newSvc(l *memLock, c *memCRM, opt Options) *Svc { return New(l, c, opt) }

func TestNew_PanicsOnMissingPorts(t *testing.T) {
	require.Panics(t, func() { New(nil, &memCRM{}, Options{}) })
	require.Panics(t, func() { New(newMemLock(), nil, Options{}) })
}

func TestSync_ClockInCreates(t *testing.T) {
	l, c := newMemLock(), &memCRM{}
	s := newSvc(l, c, Options{})

	res, err := s.Sync(context.Background(), dom.SyncInput{
		SubjectID: subject, ClockIn: "2024-01-02T02:30:00Z", IsRemote: false, TimezoneHint: "America/Chicago",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, dom.OutcomeCreated, res.Outcome)
	require.NotEmpty(t, res.RecordID)

	require.Len(t, c.records, 1)
	rec := c.records[0]
	require.Equal(t, "Jane Doe-2024-01-01", rec.Name, "name uses the display zone date")
	require.Equal(t, crm.LocationInOffice, rec.Location)
	require.True(t, rec.Active())
	require.False(t, l.isHeld(subject), "lock must be released")
}

func TestSync_AlreadyActive(t *testing.T) {
	l, c := newMemLock(), &memCRM{}
	id := c.seedActive(subject, t0)
	s := newSvc(l, c, Options{})

	res, err := s.Sync(context.Background(), dom.SyncInput{SubjectID: subject, ClockIn: rfc(t0.Add(2 * time.Hour))})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, dom.OutcomeAlreadyActive, res.Outcome)
	require.Equal(t, "already active", res.Message)
	require.NotNil(t, res.ExistingRecord)
	require.Equal(t, id, res.ExistingRecord.ID)
	require.Zero(t, c.writes(), "no record may be created")
	require.Equal(t, 1, c.activeCount(subject))
}

func TestSync_ClockOutWithinTolerancePatches(t *testing.T) {
	l, c := newMemLock(), &memCRM{}
	id := c.seedActive(subject, t0)
	s := newSvc(l, c, Options{})

	out := t0.Add(8 * time.Hour)
	res, err := s.Sync(context.Background(), dom.SyncInput{
		SubjectID: subject, ClockIn: rfc(t0.Add(30 * time.Second)), ClockOut: rfc(out),
	})
	require.NoError(t, err)
	require.Equal(t, dom.OutcomeClockedOut, res.Outcome)
	require.Equal(t, id, res.RecordID)
	require.EqualValues(t, 1, c.patches.Load())
	require.True(t, c.records[0].PunchOut.Equal(out))
	require.Zero(t, c.activeCount(subject))
}

func TestSync_ToleranceBoundaryIsInclusive(t *testing.T) {
	for _, off := range []time.Duration{60 * time.Second, -60 * time.Second} {
		l, c := newMemLock(), &memCRM{}
		c.seedActive(subject, t0)
		s := newSvc(l, c, Options{})

		_, err := s.Sync(context.Background(), dom.SyncInput{
			SubjectID: subject, ClockIn: rfc(t0.Add(off)), ClockOut: rfc(t0.Add(time.Hour)),
		})
		require.NoError(t, err, "offset %s", off)
	}

	l, c := newMemLock(), &memCRM{}
	c.seedActive(subject, t0)
	s := newSvc(l, c, Options{})
	_, err := s.Sync(context.Background(), dom.SyncInput{
		SubjectID: subject, ClockIn: rfc(t0.Add(61 * time.Second)), ClockOut: rfc(t0.Add(time.Hour)),
	})
	require.True(t, perr.IsKind(err, dom.KindClockInMismatch))
}

func TestSync_ClockInMismatchRejectsWithoutWrites(t *testing.T) {
	l, c := newMemLock(), &memCRM{}
	c.seedActive(subject, t0)
	s := newSvc(l, c, Options{})

	_, err := s.Sync(context.Background(), dom.SyncInput{
		SubjectID: subject, ClockIn: rfc(t0.Add(5 * time.Minute)), ClockOut: rfc(t0.Add(8 * time.Hour)),
	})
	require.Error(t, err)
	require.Equal(t, dom.KindClockInMismatch, perr.KindOf(err))
	require.Equal(t, 400, perr.HTTPStatus(err))
	require.Zero(t, c.writes())
	require.Equal(t, 1, c.activeCount(subject))
	require.False(t, l.isHeld(subject))
}

func TestSync_NoActiveRecord(t *testing.T) {
	l, c := newMemLock(), &memCRM{}
	s := newSvc(l, c, Options{})

	_, err := s.Sync(context.Background(), dom.SyncInput{
		SubjectID: subject, ClockIn: rfc(t0), ClockOut: rfc(t0.Add(time.Hour)),
	})
	require.Equal(t, dom.KindNoActiveRecord, perr.KindOf(err))
	require.Equal(t, 404, perr.HTTPStatus(err))
	require.Zero(t, c.writes())
	require.False(t, l.isHeld(subject))
}

func TestSync_ClockOutRetryIsNotRepatched(t *testing.T) {
	l, c := newMemLock(), &memCRM{}
	c.seedActive(subject, t0)
	s := newSvc(l, c, Options{})

	in := dom.SyncInput{SubjectID: subject, ClockIn: rfc(t0), ClockOut: rfc(t0.Add(8 * time.Hour))}
	_, err := s.Sync(context.Background(), in)
	require.NoError(t, err)

	_, err = s.Sync(context.Background(), in)
	require.Equal(t, dom.KindNoActiveRecord, perr.KindOf(err))
	require.EqualValues(t, 1, c.patches.Load(), "identical retry must not patch again")
}

func TestSync_ValidationHappensBeforeLockAndCRM(t *testing.T) {
	cases := []struct {
		name string
		in   dom.SyncInput
		kind string
	}{
		{"ordering", dom.SyncInput{SubjectID: subject, ClockIn: "2024-01-01T09:00:00Z", ClockOut: "2024-01-01T08:00:00Z"}, "OrderingViolation"},
		{"bad instant", dom.SyncInput{SubjectID: subject, ClockIn: "nine-ish"}, "InvalidInstant"},
		{"missing clockIn", dom.SyncInput{SubjectID: subject}, "InvalidInstant"},
		{"abbreviation with naive time", dom.SyncInput{SubjectID: subject, ClockIn: "2024-01-01T09:00:00", TimezoneHint: "IST"}, "InvalidInstant"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, c := newMemLock(), &memCRM{}
			s := newSvc(l, c, Options{})

			_, err := s.Sync(context.Background(), tc.in)
			require.Equal(t, tc.kind, perr.KindOf(err))
			require.Equal(t, 400, perr.HTTPStatus(err))
			require.Zero(t, l.acquires.Load())
			require.Zero(t, c.finds.Load())
		})
	}
}

func TestSync_EmptySubject(t *testing.T) {
	l, c := newMemLock(), &memCRM{}
	_, err := newSvc(l, c, Options{}).Sync(context.Background(), dom.SyncInput{SubjectID: "  ", ClockIn: rfc(t0)})
	require.Equal(t, 400, perr.HTTPStatus(err))
	require.Zero(t, l.acquires.Load())
}

func TestSync_LockContentionIsSuccessNoop(t *testing.T) {
	l, c := newMemLock(), &memCRM{}
	l.held[subject] = true
	s := newSvc(l, c, Options{})

	res, err := s.Sync(context.Background(), dom.SyncInput{SubjectID: subject, ClockIn: rfc(t0)})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, dom.OutcomeInProgress, res.Outcome)
	require.Zero(t, c.finds.Load(), "loser must not touch the CRM")
	require.Zero(t, l.releases.Load(), "loser must not release the holder's lock")
	require.True(t, l.isHeld(subject))
}

func TestSync_ContendedClockOutAsksForRetry(t *testing.T) {
	l, c := newMemLock(), &memCRM{}
	c.seedActive(subject, t0)
	l.held[subject] = true
	s := newSvc(l, c, Options{})

	res, err := s.Sync(context.Background(), dom.SyncInput{SubjectID: subject, ClockIn: rfc(t0), ClockOut: rfc(t0.Add(time.Hour))})
	require.NoError(t, err)
	require.Equal(t, dom.OutcomeInProgress, res.Outcome)
	require.Contains(t, res.Message, "clock-out not applied")
	require.Zero(t, c.patches.Load())

	in, err := s.Sync(context.Background(), dom.SyncInput{SubjectID: subject, ClockIn: rfc(t0)})
	require.NoError(t, err)
	require.Equal(t, "sync already in progress", in.Message)
}

func TestSync_LockErrorIs500(t *testing.T) {
	l, c := newMemLock(), &memCRM{}
	l.acquireErr = errors.New("pg gone")
	_, err := newSvc(l, c, Options{}).Sync(context.Background(), dom.SyncInput{SubjectID: subject, ClockIn: rfc(t0)})
	require.Equal(t, 500, perr.HTTPStatus(err))
	require.Zero(t, c.finds.Load())
}

func TestSync_GatewayErrorsMapTo500AndRelease(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind string
	}{
		{"transient", crm.TransientError(errors.New("503"), "crm find_active unavailable"), crm.KindTransient},
		{"auth", crm.AuthError(errors.New("401"), "crm find_active rejected credential"), crm.KindAuth},
		{"rejected", crm.RejectedError(errors.New("400"), "crm find_active rejected request"), crm.KindRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, c := newMemLock(), &memCRM{findErr: tc.err}
			_, err := newSvc(l, c, Options{}).Sync(context.Background(), dom.SyncInput{SubjectID: subject, ClockIn: rfc(t0)})
			require.Error(t, err)
			require.Equal(t, tc.kind, perr.KindOf(err), "kind survives the boundary")
			require.Equal(t, perr.ErrorCodeExternal, perr.CodeOf(err))
			require.Equal(t, 500, perr.HTTPStatus(err))
			require.Zero(t, c.writes())
			require.False(t, l.isHeld(subject), "lock must be released on external failure")
		})
	}
}

func TestSync_ReleasesOnCanceledContext(t *testing.T) {
	l, c := newMemLock(), &memCRM{}
	ctx, cancel := context.WithCancel(context.Background())
	c.findErr = crm.TransientError(context.Canceled, "crm find_active transport")
	cancel()

	_, err := newSvc(l, c, Options{}).Sync(ctx, dom.SyncInput{SubjectID: subject, ClockIn: rfc(t0)})
	require.Error(t, err)
	require.EqualValues(t, 1, l.releases.Load())
	require.False(t, l.isHeld(subject))
}

func TestSync_TenantResolution(t *testing.T) {
	var seen []string
	l := newMemLock()
	gw := &tenantSpy{memCRM: &memCRM{}, seen: &seen}

	s := New(l, gw, Options{DefaultTenant: "acme"})
	_, _ = s.Sync(context.Background(), dom.SyncInput{SubjectID: "a@x.io", ClockIn: rfc(t0)})
	_, _ = s.Sync(context.Background(), dom.SyncInput{SubjectID: "b@x.io", ClockIn: rfc(t0), Tenant: "globex"})
	require.Equal(t, []string{"acme", "acme", "globex", "globex"}, seen)
}

type tenantSpy struct {
	*memCRM
	seen *[]string
}

func (s *tenantSpy) FindActive(ctx context.Context, tenant, subject string) (*crm.Record, error) {
	*s.seen = append(*s.seen, tenant)
	return s.memCRM.FindActive(ctx, tenant, subject)
}

func (s *tenantSpy) Create(ctx context.Context, tenant string, r crm.NewRecord) (string, error) {
	*s.seen = append(*s.seen, tenant)
	return s.memCRM.Create(ctx, tenant, r)
}

func TestSync_AuditEvents(t *testing.T) {
	l, c := newMemLock(), &memCRM{}
	audit := &spyAudit{err: errors.New("clickhouse down")}
	s := newSvc(l, c, Options{Audit: audit})

	res, err := s.Sync(context.Background(), dom.SyncInput{SubjectID: subject, ClockIn: rfc(t0)})
	require.NoError(t, err, "audit failure must not fail the sync")
	_, err = s.Sync(context.Background(), dom.SyncInput{SubjectID: subject, ClockIn: rfc(t0), ClockOut: rfc(t0.Add(-time.Hour))})
	require.Error(t, err)

	require.Len(t, audit.events, 2)
	require.Equal(t, "created", audit.events[0].Outcome)
	require.Equal(t, res.RecordID, audit.events[0].RecordID)
	require.Equal(t, "default", audit.events[0].Tenant)
	require.Equal(t, "OrderingViolation", audit.events[1].Outcome)
	require.Equal(t, "OrderingViolation", audit.events[1].Kind)
}

func TestSync_ConcurrentSameSubjectSingleWriter(t *testing.T) {
	l := newMemLock()
	c := &memCRM{gate: make(chan struct{})}
	s := newSvc(l, c, Options{})

	const n = 2
	results := make([]dom.SyncResult, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.Sync(context.Background(), dom.SyncInput{SubjectID: subject, ClockIn: rfc(t0)})
		}(i)
	}

	// the winner is parked in FindActive; the loser must come back without waiting for it
	require.Eventually(t, func() bool { return l.acquires.Load() == n }, time.Second, 5*time.Millisecond)
	close(c.gate)
	wg.Wait()

	var created, inProgress int
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		switch results[i].Outcome {
		case dom.OutcomeCreated:
			created++
		case dom.OutcomeInProgress:
			inProgress++
		}
	}
	require.Equal(t, 1, created)
	require.Equal(t, 1, inProgress)
	require.EqualValues(t, 1, c.finds.Load(), "exactly one sync may query the CRM")
	require.EqualValues(t, 1, c.creates.Load())
}

func TestSync_InterleavedStormKeepsOneActive(t *testing.T) {
	l := newMemLock()
	c := &memCRM{delay: time.Millisecond}
	s := newSvc(l, c, Options{})

	subjects := []string{"a@example.com", "b@example.com", "c@example.com"}
	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := dom.SyncInput{SubjectID: subjects[i%len(subjects)], ClockIn: rfc(t0.Add(time.Duration(i%4) * time.Hour))}
			if i%3 == 0 {
				in.ClockOut = rfc(t0.Add(10 * time.Hour))
			}
			_, _ = s.Sync(context.Background(), in)
		}(i)
	}
	wg.Wait()

	for _, sub := range subjects {
		require.LessOrEqual(t, c.activeCount(sub), 1, "subject %s", sub)
		require.False(t, l.isHeld(sub))
	}
}

func TestSync_ClockOutWaitsForLockWhenConfigured(t *testing.T) {
	l, c := newMemLock(), &memCRM{}
	c.seedActive(subject, t0)
	l.held[subject] = true
	s := newSvc(l, c, Options{ClockOutLockWait: 2 * time.Second})

	go func() {
		time.Sleep(150 * time.Millisecond)
		_ = l.Release(context.Background(), subject)
	}()

	res, err := s.Sync(context.Background(), dom.SyncInput{SubjectID: subject, ClockIn: rfc(t0), ClockOut: rfc(t0.Add(time.Hour))})
	require.NoError(t, err)
	require.Equal(t, dom.OutcomeClockedOut, res.Outcome)
}

func TestSync_ClockOutWaitGivesUp(t *testing.T) {
	l, c := newMemLock(), &memCRM{}
	l.held[subject] = true
	s := newSvc(l, c, Options{ClockOutLockWait: 250 * time.Millisecond})

	res, err := s.Sync(context.Background(), dom.SyncInput{SubjectID: subject, ClockIn: rfc(t0), ClockOut: rfc(t0.Add(time.Hour))})
	require.NoError(t, err)
	require.Equal(t, dom.OutcomeInProgress, res.Outcome)
	require.Zero(t, c.finds.Load())
}

type memHistory struct {
	subject string
	limit   int
	events  []dom.Event
	err     error
}

func (m *memHistory) Recent(_ context.Context, subject string, limit int) ([]dom.Event, error) {
	m.subject, m.limit = subject, limit
	return m.events, m.err
}

func TestHistory(t *testing.T) {
	h := &memHistory{events: []dom.Event{{At: t0, Tenant: "acme", Outcome: "created", RecordID: "a01", Duration: 42 * time.Millisecond}}}
	s := newSvc(newMemLock(), &memCRM{}, Options{History: h})

	items, err := s.History(context.Background(), subject, 0)
	require.NoError(t, err)
	require.Equal(t, defaultHistory, h.limit)
	require.Len(t, items, 1)
	require.EqualValues(t, 42, items[0].DurationMs)

	_, err = s.History(context.Background(), subject, 10_000)
	require.NoError(t, err)
	require.Equal(t, maxHistory, h.limit)

	_, err = s.History(context.Background(), " ", 1)
	require.Equal(t, 400, perr.HTTPStatus(err))

	h.err = errors.New("ch down")
	_, err = s.History(context.Background(), subject, 1)
	require.Equal(t, 503, perr.HTTPStatus(err))
}

func TestHistory_DisabledIsEmpty(t *testing.T) {
	items, err := newSvc(newMemLock(), &memCRM{}, Options{}).History(context.Background(), subject, 5)
	require.NoError(t, err)
	require.Empty(t, items)
}
