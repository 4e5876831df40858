package ch

import (
	"context"
	"errors"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

type fakeBatch struct {
	driver.Batch
	rows    [][]any
	sent    bool
	aborted bool
	failAt  int
}

func (b *fakeBatch) Append(v ...any) error {
	if b.failAt > 0 && len(b.rows)+1 == b.failAt {
		return errors.New("bad row")
	}
	b.rows = append(b.rows, v)
	return nil
}
func (b *fakeBatch) Send() error  { b.sent = true; return nil }
func (b *fakeBatch) Abort() error { b.aborted = true; return nil }

type fakeConn struct {
	batch    *fakeBatch
	prepared string
	execs    []string
	pingErr  error
	closed   bool
}

func (c *fakeConn) Ping(context.Context) error { return c.pingErr }
func (c *fakeConn) Query(context.Context, string, ...any) (driver.Rows, error) {
	return nil, errors.New("no rows in fake")
}
func (c *fakeConn) Exec(_ context.Context, q string, _ ...any) error {
	c.execs = append(c.execs, q)
	return nil
}
func (c *fakeConn) PrepareBatch(_ context.Context, q string, _ ...driver.PrepareBatchOption) (driver.Batch, error) {
	c.prepared = q
	return c.batch, nil
}
func (c *fakeConn) Close() error { c.closed = true; return nil }

// TestOpen rejects empty and malformed DSNs before dialing
func TestOpen_BadConfig(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty url")
	}
	if _, err := Open(context.Background(), Config{URL: "::not a dsn"}); err == nil {
		t.Fatalf("expected error for malformed url")
	}
}

// TestInsert_Batches appends every row and sends once
func TestInsert_Batches(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{batch: &fakeBatch{}}
	c := &CH{conn: fc}

	err := c.Insert(context.Background(), "clock_sync_events", [][]any{{1, "a"}, {2, "b"}})
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if fc.prepared != "INSERT INTO clock_sync_events" {
		t.Fatalf("prepared %q", fc.prepared)
	}
	if len(fc.batch.rows) != 2 || !fc.batch.sent {
		t.Fatalf("rows=%d sent=%v", len(fc.batch.rows), fc.batch.sent)
	}
}

// TestInsert_AppendFailureAborts aborts the batch and does not send
func TestInsert_AppendFailureAborts(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{batch: &fakeBatch{failAt: 2}}
	c := &CH{conn: fc}

	if err := c.Insert(context.Background(), "t", [][]any{{1}, {2}}); err == nil {
		t.Fatalf("expected append error")
	}
	if !fc.batch.aborted || fc.batch.sent {
		t.Fatalf("aborted=%v sent=%v", fc.batch.aborted, fc.batch.sent)
	}
}

// TestInsert_EmptyIsNoop skips the round trip entirely
func TestInsert_EmptyIsNoop(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{}
	c := &CH{conn: fc}
	if err := c.Insert(context.Background(), "t", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fc.prepared != "" {
		t.Fatalf("should not prepare a batch")
	}
}

// TestPingExecClose pass through to the connection
func TestPingExecClose(t *testing.T) {
	t.Parallel()

	fc := &fakeConn{pingErr: errors.New("down")}
	c := &CH{conn: fc}

	if err := c.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping error")
	}
	if err := c.Exec(context.Background(), "CREATE TABLE x"); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if len(fc.execs) != 1 {
		t.Fatalf("execs=%v", fc.execs)
	}
	if err := c.Close(); err != nil || !fc.closed {
		t.Fatalf("close err=%v closed=%v", err, fc.closed)
	}

	var nilCH *CH
	if err := nilCH.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}

func TestClientInfo(t *testing.T) {
	ci := ClientInfo("clockrelay", "api")
	names := make(map[string]string, len(ci.Products))
	for _, p := range ci.Products {
		names[p.Name] = p.Version
	}
	if names["clockrelay-api"] == "" || names["role"] != "clockrelay" || names["tag"] != "api" {
		t.Fatalf("products = %+v", ci.Products)
	}
}
