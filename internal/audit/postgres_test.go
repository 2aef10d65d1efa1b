package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// mockRows implements pgx.Rows for testing.
type mockRows struct {
	data   [][]any
	idx    int
	err    error
	closed bool
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.err }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: expected %d columns, got %d destinations", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *[]byte:
			*d = v.([]byte)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported type at index %d: %T", i, dest[i])
		}
	}
	return nil
}

// mockDB implements the DB interface for testing.
type mockDB struct {
	queryFunc func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFunc  func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, sql, args...)
	}
	return &mockRows{}, nil
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func TestPostgresSink_Migrate(t *testing.T) {
	t.Parallel()

	var gotSQL string
	s := NewPostgresSink(&mockDB{execFunc: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
		gotSQL = sql
		return pgconn.CommandTag{}, nil
	}})
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if gotSQL != Schema {
		t.Error("Migrate did not execute Schema")
	}

	failing := NewPostgresSink(&mockDB{execFunc: func(context.Context, string, ...any) (pgconn.CommandTag, error) {
		return pgconn.CommandTag{}, errors.New("permission denied")
	}})
	if err := failing.Migrate(context.Background()); err == nil || !strings.Contains(err.Error(), "audit: migrate") {
		t.Errorf("Migrate() error = %v", err)
	}
}

func TestPostgresSink_Record(t *testing.T) {
	t.Parallel()

	var args []any
	s := NewPostgresSink(&mockDB{execFunc: func(_ context.Context, sql string, a ...any) (pgconn.CommandTag, error) {
		if !strings.Contains(sql, "INSERT INTO objective_transitions") {
			t.Errorf("unexpected SQL: %s", sql)
		}
		args = a
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}})

	at := time.Date(2026, 10, 19, 20, 0, 0, 0, time.FixedZone("AEDT", 11*3600))
	err := s.Record(context.Background(), Record{
		SessionID: "s-1", Objective: "callback_number", Kind: "phone",
		Event: "start", From: "pending", To: "eliciting", Timestamp: at,
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(args) != 8 {
		t.Fatalf("got %d args, want 8", len(args))
	}
	if string(args[6].([]byte)) != "{}" {
		t.Errorf("data arg = %s, want {}", args[6])
	}
	if ts := args[7].(time.Time); ts.Location() != time.UTC || !ts.Equal(at) {
		t.Errorf("occurred_at arg = %v, want %v in UTC", ts, at)
	}
}

func TestPostgresSink_List(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	rows := &mockRows{data: [][]any{
		{"s-1", "contact_email", "email", "start", "pending", "eliciting", []byte("{}"), at},
		{"s-1", "contact_email", "email", "user_spoke", "eliciting", "captured", []byte(`{"confidence":0.9,"value":"jane@gmail.com"}`), at.Add(time.Second)},
	}}
	var gotArgs []any
	s := NewPostgresSink(&mockDB{queryFunc: func(_ context.Context, _ string, a ...any) (pgx.Rows, error) {
		gotArgs = a
		return rows, nil
	}})

	got, err := s.List(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []Record{
		{SessionID: "s-1", Objective: "contact_email", Kind: "email", Event: "start", From: "pending", To: "eliciting", Timestamp: at},
		{
			SessionID: "s-1", Objective: "contact_email", Kind: "email", Event: "user_spoke", From: "eliciting", To: "captured",
			Data:      map[string]any{"confidence": 0.9, "value": "jane@gmail.com"},
			Timestamp: at.Add(time.Second),
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
	if len(gotArgs) != 1 || gotArgs[0] != "s-1" {
		t.Errorf("query args = %v", gotArgs)
	}
	if !rows.closed {
		t.Error("rows not closed")
	}
}

func TestPostgresSink_ListErrors(t *testing.T) {
	t.Parallel()

	s := NewPostgresSink(&mockDB{queryFunc: func(context.Context, string, ...any) (pgx.Rows, error) {
		return nil, errors.New("connection reset")
	}})
	if _, err := s.List(context.Background(), "s-1"); err == nil {
		t.Error("List() error = nil on query failure")
	}

	s = NewPostgresSink(&mockDB{queryFunc: func(context.Context, string, ...any) (pgx.Rows, error) {
		return &mockRows{err: errors.New("stream broken")}, nil
	}})
	if _, err := s.List(context.Background(), "s-1"); err == nil || !strings.Contains(err.Error(), "iterate") {
		t.Errorf("List() error = %v, want iterate error", err)
	}
}
