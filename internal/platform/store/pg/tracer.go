package pg

import (
	"context"
	"strings"
	"time"

	"clockrelay/internal/platform/logger"
	"clockrelay/internal/platform/metrics"

	"github.com/jackc/pgx/v5"
)

// Tracer times every statement, feeds the query histogram and logs
// statements that fail, run slow, or all of them when logAll is set
type Tracer struct {
	log    logger.Logger
	logAll bool
	slow   time.Duration
	now    func() time.Time
}

var _ pgx.QueryTracer = (*Tracer)(nil)

// NewTracer builds a Tracer; slow <= 0 disables slow query warnings
func NewTracer(log logger.Logger, logAll bool, slow time.Duration) *Tracer {
	return &Tracer{
		log:    log.With().Str("component", "pg").Logger(),
		logAll: logAll,
		slow:   slow,
		now:    time.Now,
	}
}

type traceKey struct{}

type traceStart struct {
	sql string
	at  time.Time
}

// TraceQueryStart implements pgx.QueryTracer
func (t *Tracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceKey{}, traceStart{sql: data.SQL, at: t.now()})
}

// TraceQueryEnd implements pgx.QueryTracer
func (t *Tracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	st, ok := ctx.Value(traceKey{}).(traceStart)
	if !ok {
		return
	}
	elapsed := t.now().Sub(st.at)
	verb := Verb(st.sql)
	metrics.ObserveQuery(verb, elapsed, data.Err)

	slow := t.slow > 0 && elapsed >= t.slow
	if !t.logAll && !slow && data.Err == nil {
		return
	}
	evt := t.log.Debug()
	switch {
	case data.Err != nil:
		evt = t.log.Error().Err(data.Err)
	case slow:
		evt = t.log.Warn()
	}
	evt.Str("verb", verb).
		Dur("elapsed", elapsed).
		Bool("slow", slow).
		Int64("rows", data.CommandTag.RowsAffected()).
		Str("sql", Compact(st.sql)).
		Msg("pg query")
}

// Verb is the lowercased first keyword of sql, used as a metric label
func Verb(sql string) string {
	f := strings.Fields(sql)
	if len(f) == 0 {
		return "unknown"
	}
	switch v := strings.ToLower(f[0]); v {
	case "select", "insert", "update", "delete", "create", "set", "with", "begin", "commit", "rollback":
		return v
	default:
		return "other"
	}
}

// Compact folds all whitespace runs in sql to single spaces
func Compact(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}
