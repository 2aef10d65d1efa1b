package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Spotfunnel/voiceOS-sub001/internal/resilience"
)

func ok(context.Context) error { return nil }

func serve(t *testing.T, h *Handler, path string, ctx context.Context) (int, result) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	req := httptest.NewRequest("GET", path, nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return rec.Code, body
}

func TestHealthz_IgnoresCheckers(t *testing.T) {
	t.Parallel()

	h := New(Checker{Name: "audit_db", Check: func(context.Context) error { return errors.New("down") }})
	code, body := serve(t, h, "/healthz", context.Background())
	if code != http.StatusOK || body.Status != "ok" || body.Checks != nil {
		t.Errorf("/healthz = %d %+v", code, body)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		checkers []Checker
		wantCode int
		want     map[string]string
	}{
		{
			name:     "no checkers",
			wantCode: http.StatusOK,
		},
		{
			name:     "all pass",
			checkers: []Checker{{Name: "audit_db", Check: ok}, {Name: "validator", Check: ok}},
			wantCode: http.StatusOK,
			want:     map[string]string{"audit_db": "ok", "validator": "ok"},
		},
		{
			name: "one fails",
			checkers: []Checker{
				{Name: "audit_db", Check: func(context.Context) error { return errors.New("connection refused") }},
				{Name: "validator", Check: ok},
			},
			wantCode: http.StatusServiceUnavailable,
			want:     map[string]string{"audit_db": "fail: connection refused", "validator": "ok"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, body := serve(t, New(tt.checkers...), "/readyz", context.Background())
			if code != tt.wantCode {
				t.Errorf("status = %d, want %d", code, tt.wantCode)
			}
			wantStatus := "ok"
			if tt.wantCode != http.StatusOK {
				wantStatus = "fail"
			}
			if body.Status != wantStatus {
				t.Errorf("status field = %q, want %q", body.Status, wantStatus)
			}
			for k, v := range tt.want {
				if body.Checks[k] != v {
					t.Errorf("check %s = %q, want %q", k, body.Checks[k], v)
				}
			}
		})
	}
}

func TestReadyz_RespectsContextCancellation(t *testing.T) {
	t.Parallel()

	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if code, _ := serve(t, h, "/readyz", ctx); code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestPing(t *testing.T) {
	t.Parallel()

	if err := Ping("audit_db", fakePinger{}).Check(context.Background()); err != nil {
		t.Errorf("Ping check error = %v", err)
	}
	want := errors.New("no route to host")
	c := Ping("audit_db", fakePinger{err: want})
	if c.Name != "audit_db" || !errors.Is(c.Check(context.Background()), want) {
		t.Errorf("Ping check = %+v", c)
	}
}

func TestBreakers(t *testing.T) {
	t.Parallel()

	states := map[string]resilience.State{"primary": resilience.StateOpen, "backup": resilience.StateHalfOpen}
	c := Breakers("validator", func() map[string]resilience.State { return states })
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("partially open: error = %v", err)
	}

	states["backup"] = resilience.StateOpen
	err := c.Check(context.Background())
	if !errors.Is(err, resilience.ErrCircuitOpen) || !strings.Contains(err.Error(), "[backup primary]") {
		t.Errorf("all open: error = %v", err)
	}

	empty := Breakers("validator", func() map[string]resilience.State { return nil })
	if err := empty.Check(context.Background()); err != nil {
		t.Errorf("no breakers: error = %v", err)
	}
}
