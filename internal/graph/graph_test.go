package graph_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Spotfunnel/voiceOS-sub001/internal/capture"
	"github.com/Spotfunnel/voiceOS-sub001/internal/capture/email"
	"github.com/Spotfunnel/voiceOS-sub001/internal/capture/phone"
	"github.com/Spotfunnel/voiceOS-sub001/internal/graph"
	"github.com/Spotfunnel/voiceOS-sub001/internal/objective"
)

var reg = capture.NewRegistry(email.New(), phone.New())

func plan(policy graph.Policy, phoneCritical bool) graph.Plan {
	return graph.Plan{
		Steps: []graph.Step{
			{Name: "contact_email", Kind: capture.KindEmail},
			{Name: "callback_number", Kind: capture.KindPhone, Critical: phoneCritical},
			{Name: "backup_email", Kind: capture.KindEmail},
		},
		OnFailure: policy,
	}
}

// confirm drives obj from Eliciting to Confirmed without a confirmation turn.
func confirm(t *testing.T, obj *objective.Objective, utterance string) {
	t.Helper()
	if _, st := obj.HandleUtterance(utterance, 0.95); st != objective.StateCaptured {
		t.Fatalf("HandleUtterance(%q) = %s, want Captured", utterance, st)
	}
	if st := obj.Validate(true, 0.95); st != objective.StateConfirmed {
		t.Fatalf("Validate() = %s, want Confirmed", st)
	}
}

func fail(obj *objective.Objective) {
	for obj.State() == objective.StateEliciting {
		obj.HandleTimeout()
	}
}

func TestGraph_RunsStepsInOrder(t *testing.T) {
	t.Parallel()

	var seen []string
	g, err := graph.New(plan(graph.PolicyAbort, false), reg,
		graph.WithObserver(func(s graph.Step, tr objective.Transition) {
			seen = append(seen, s.Name+":"+tr.To.String())
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := g.Active(); ok {
		t.Fatal("Active() before Start")
	}

	obj, ok := g.Start()
	if !ok || obj.Type != "contact_email" || obj.State() != objective.StateEliciting {
		t.Fatalf("Start() = %v, %v", obj, ok)
	}
	if g.Advance() {
		t.Error("Advance() moved on while eliciting")
	}

	confirm(t, obj, "jane at gmail dot com")
	if !g.Advance() {
		t.Fatal("Advance() after Confirmed = false")
	}
	if obj.State() != objective.StateCompleted {
		t.Errorf("first objective state = %s, want Completed", obj.State())
	}

	obj, _ = g.Active()
	confirm(t, obj, "oh four one two three four five six seven eight")
	g.Advance()
	obj, _ = g.Active()
	confirm(t, obj, "sam at outlook dot com")
	g.Advance()

	if !g.Done() || g.Aborted() {
		t.Fatalf("Done() = %v, Aborted() = %v", g.Done(), g.Aborted())
	}
	want := []graph.Result{
		{Step: graph.Step{Name: "contact_email", Kind: capture.KindEmail}, State: objective.StateCompleted, Value: "jane@gmail.com"},
		{Step: graph.Step{Name: "callback_number", Kind: capture.KindPhone}, State: objective.StateCompleted, Value: "0412345678"},
		{Step: graph.Step{Name: "backup_email", Kind: capture.KindEmail}, State: objective.StateCompleted, Value: "sam@outlook.com"},
	}
	if diff := cmp.Diff(want, g.Results()); diff != "" {
		t.Errorf("Results() mismatch (-want +got):\n%s", diff)
	}
	if len(seen) != 12 || seen[0] != "contact_email:eliciting" || seen[11] != "backup_email:completed" {
		t.Errorf("observed transitions = %v", seen)
	}
}

func TestGraph_FailurePolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		policy      graph.Policy
		critical    bool
		wantAborted bool
	}{
		{"abort policy", graph.PolicyAbort, false, true},
		{"skip policy", graph.PolicySkip, false, false},
		{"critical failure aborts under skip", graph.PolicySkip, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g, err := graph.New(plan(tt.policy, tt.critical), reg)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			obj, _ := g.Start()
			confirm(t, obj, "jane at gmail dot com")
			g.Advance()

			obj, _ = g.Active()
			fail(obj)
			if obj.State() != objective.StateFailed {
				t.Fatalf("state = %s, want Failed", obj.State())
			}
			if !g.Advance() {
				t.Fatal("Advance() after Failed = false")
			}
			if g.Aborted() != tt.wantAborted {
				t.Errorf("Aborted() = %v, want %v", g.Aborted(), tt.wantAborted)
			}

			last := g.Results()[2]
			if tt.wantAborted {
				if !g.Done() || !last.Skipped {
					t.Errorf("Done() = %v, last step skipped = %v; want both true", g.Done(), last.Skipped)
				}
				return
			}
			next, ok := g.Active()
			if !ok || next.Type != "backup_email" || next.State() != objective.StateEliciting {
				t.Errorf("Active() after skip = %v, %v", next, ok)
			}
		})
	}
}

func TestGraph_Objective(t *testing.T) {
	t.Parallel()

	g, err := graph.New(plan(graph.PolicySkip, false), reg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	obj, err := g.Objective("callback_number")
	if err != nil || obj.Kind() != capture.KindPhone {
		t.Errorf("Objective(callback_number) = %v, %v", obj, err)
	}
	if _, err := g.Objective("nope"); err == nil {
		t.Error("Objective(nope) error = nil")
	}
}

func TestPlan_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		plan graph.Plan
		ok   bool
	}{
		{"valid", plan(graph.PolicyAbort, true), true},
		{"empty", graph.Plan{}, false},
		{"duplicate", graph.Plan{Steps: []graph.Step{
			{Name: "a", Kind: capture.KindEmail}, {Name: "a", Kind: capture.KindPhone},
		}}, false},
		{"unregistered kind", graph.Plan{Steps: []graph.Step{{Name: "when", Kind: capture.KindDateTime}}}, false},
		{"unnamed", graph.Plan{Steps: []graph.Step{{Kind: capture.KindEmail}}}, false},
	}
	for _, tt := range tests {
		err := tt.plan.Validate(reg)
		if (err == nil) != tt.ok {
			t.Errorf("%s: Validate() error = %v", tt.name, err)
		}
		if err != nil && !errors.Is(err, graph.ErrInvalidPlan) {
			t.Errorf("%s: error %v does not wrap ErrInvalidPlan", tt.name, err)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]graph.Policy{"": graph.PolicyAbort, "abort": graph.PolicyAbort, " Skip ": graph.PolicySkip} {
		got, err := graph.ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %s, %v; want %s", in, got, err, want)
		}
	}
	if _, err := graph.ParsePolicy("retry"); err == nil {
		t.Error("ParsePolicy(retry) error = nil")
	}
	if graph.PolicySkip.String() != "skip" {
		t.Errorf("PolicySkip.String() = %q", graph.PolicySkip.String())
	}
}
