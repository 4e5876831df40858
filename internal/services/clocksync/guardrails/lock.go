// Package guardrails holds the per subject sync lock
//
// The lock is a row in clock_sync_locks keyed by subject. Acquire is an
// insert-if-absent and every attempt first sweeps rows older than the
// staleness threshold, so a crashed holder blocks its subject for at most
// that long. There is no explicit leak detection beyond the sweep.
package guardrails

import (
	"context"
	"fmt"
	"time"

	"clockrelay/internal/modkit/repokit"
	perr "clockrelay/internal/platform/errors"
	"clockrelay/internal/platform/logger"

	"github.com/google/uuid"
)

const (
	defaultStaleAfter     = time.Hour
	defaultReleaseTimeout = 5 * time.Second
	defaultLockTimeout    = 2 * time.Second
)

// LockOptions tunes the subject lock
type LockOptions struct {
	// StaleAfter is the age at which a held lock is reaped by the sweep
	StaleAfter time.Duration

	// ReleaseTimeout bounds Release, which runs detached from the caller ctx
	ReleaseTimeout time.Duration

	// LockTimeout caps how long Acquire waits on a concurrent insert of the same key
	LockTimeout time.Duration
}

// SubjectLock serializes syncs per subject using Postgres
type SubjectLock struct {
	db       repokit.TxRunner
	opt      LockOptions
	newToken func() string
	log      logger.Logger
}

// NewSubjectLock builds a SubjectLock over db
func NewSubjectLock(db repokit.TxRunner, opt LockOptions) *SubjectLock {
	if db == nil {
		panic("guardrails: SubjectLock requires a non nil TxRunner")
	}
	if opt.StaleAfter <= 0 {
		opt.StaleAfter = defaultStaleAfter
	}
	if opt.ReleaseTimeout <= 0 {
		opt.ReleaseTimeout = defaultReleaseTimeout
	}
	if opt.LockTimeout <= 0 {
		opt.LockTimeout = defaultLockTimeout
	}
	l := &SubjectLock{
		opt:      opt,
		newToken: func() string { return uuid.NewString() },
		log:      *logger.Named("clocksync.lock"),
	}
	l.db = repokit.WithBeginHooks(db, l.setLockTimeout)
	return l
}

// setLockTimeout keeps a blocked insert from hanging the request
func (l *SubjectLock) setLockTimeout(ctx context.Context, q repokit.Queryer) error {
	_, err := q.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", l.opt.LockTimeout.Milliseconds()))
	return err
}

// Acquire sweeps stale locks then tries to claim subjectID
// ok is false when another holder owns the subject, which is not an error
func (l *SubjectLock) Acquire(ctx context.Context, subjectID string) (token string, ok bool, err error) {
	candidate := l.newToken()

	err = l.db.Tx(ctx, func(q repokit.Queryer) error {
		tag, err := q.Exec(ctx, `
			delete from clock_sync_locks
			where acquired_at < now() - make_interval(secs => $1)
		`, l.opt.StaleAfter.Seconds())
		if err != nil {
			return err
		}
		if n := tag.RowsAffected(); n > 0 {
			l.log.Warn().Int64("reaped", n).Dur("stale_after", l.opt.StaleAfter).Msg("swept stale sync locks")
		}

		rows, err := q.Query(ctx, `
			insert into clock_sync_locks (subject_id, lock_token, acquired_at)
			values ($1, $2::uuid, now())
			on conflict (subject_id) do nothing
			returning lock_token::text
		`, subjectID, candidate)
		if err != nil {
			return err
		}
		defer rows.Close()
		if rows.Next() {
			if err := rows.Scan(&token); err != nil {
				return err
			}
			ok = true
		}
		return rows.Err()
	})
	if perr.IsLockNotAvailable(err) {
		// a concurrent insert for the same subject outlived lock_timeout
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release deletes the lock row for subjectID unconditionally
// it ignores cancellation of ctx so a dropped client cannot strand the lock
func (l *SubjectLock) Release(ctx context.Context, subjectID string) error {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.opt.ReleaseTimeout)
	defer cancel()

	if _, err := l.db.Exec(rctx, `delete from clock_sync_locks where subject_id = $1`, subjectID); err != nil {
		l.log.Error().Err(err).Str("subject", subjectID).Msg("sync lock release failed")
		return err
	}
	return nil
}

// EnsureSchema creates the lock table when missing
func (l *SubjectLock) EnsureSchema(ctx context.Context) error {
	_, err := l.db.Exec(ctx, `
		create table if not exists clock_sync_locks (
			subject_id  text primary key,
			lock_token  uuid not null,
			acquired_at timestamptz not null default now()
		);
		create index if not exists clock_sync_locks_acquired_at_idx on clock_sync_locks (acquired_at);
	`)
	return err
}
