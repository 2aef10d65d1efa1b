package scenario_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Spotfunnel/voiceOS-sub001/internal/capture"
	"github.com/Spotfunnel/voiceOS-sub001/internal/capture/email"
	"github.com/Spotfunnel/voiceOS-sub001/internal/capture/phone"
	"github.com/Spotfunnel/voiceOS-sub001/internal/graph"
	"github.com/Spotfunnel/voiceOS-sub001/internal/scenario"
	"github.com/Spotfunnel/voiceOS-sub001/internal/session"
)

var contactPlan = graph.Plan{
	Steps: []graph.Step{
		{Name: "contact_email", Kind: capture.KindEmail},
		{Name: "callback_number", Kind: capture.KindPhone, Critical: true},
	},
	OnFailure: graph.PolicySkip,
}

func newManager() *session.Manager {
	return session.NewManager(contactPlan, capture.NewRegistry(email.New(), phone.New()), nil)
}

func TestRun_ContactScenarios(t *testing.T) {
	t.Parallel()

	f, err := scenario.Load("testdata/contact.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	mgr := newManager()
	results, err := scenario.NewRunner(mgr, scenario.WithParallelism(2)).Run(context.Background(), f)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != len(f.Calls) {
		t.Fatalf("Run() returned %d results, want %d", len(results), len(f.Calls))
	}
	for i, res := range results {
		if res.Call != f.Calls[i].Name {
			t.Errorf("results[%d].Call = %q, want file order %q", i, res.Call, f.Calls[i].Name)
		}
		if !res.Passed() {
			t.Errorf("call %q mismatches:\n%s\ndialogue:\n%s", res.Call, strings.Join(res.Mismatches, "\n"), strings.Join(res.Dialogue, "\n"))
		}
		if res.SessionID == "" {
			t.Errorf("call %q has no session id", res.Call)
		}
	}
	if mgr.Len() != 0 {
		t.Errorf("Manager.Len() = %d after replay, want every session closed", mgr.Len())
	}
}

func TestRunCall_Dialogue(t *testing.T) {
	t.Parallel()

	res, err := scenario.NewRunner(newManager()).RunCall(context.Background(), scenario.Call{
		Name: "short",
		Turns: []scenario.Turn{
			{Say: "jane at gmail dot com", Confidence: 0.95},
			{Silence: true},
		},
	})
	if err != nil {
		t.Fatalf("RunCall() error = %v", err)
	}
	want := []string{
		"agent: Could I please get your email address?",
		"caller: jane at gmail dot com",
		"agent: Great, thank you. Could I please get your phone number?",
		"caller: (silence)",
	}
	if diff := cmp.Diff(want, res.Dialogue[:4]); diff != "" {
		t.Errorf("Dialogue mismatch (-want +got):\n%s", diff)
	}
	if len(res.Dialogue) != 5 {
		t.Errorf("Dialogue has %d lines, want 5", len(res.Dialogue))
	}
}

func TestRunCall_ReportsMismatches(t *testing.T) {
	t.Parallel()

	res, err := scenario.NewRunner(newManager()).RunCall(context.Background(), scenario.Call{
		Name:  "wrong expectation",
		Turns: []scenario.Turn{{Say: "jane at gmail dot com", Confidence: 0.95}},
		Expect: scenario.Expect{
			Outcome: "completed",
			Values:  map[string]string{"contact_email": "sam@icloud.com", "fax": "1"},
			States:  map[string]string{"callback_number": "confirmed"},
		},
	})
	if err != nil {
		t.Fatalf("RunCall() error = %v", err)
	}
	want := []string{
		"outcome = abandoned, want completed",
		`contact_email value = "jane@gmail.com", want "sam@icloud.com"`,
		"objective fax is not in the plan",
		"callback_number state = eliciting, want confirmed",
	}
	if diff := cmp.Diff(want, res.Mismatches); diff != "" {
		t.Errorf("Mismatches (-want +got):\n%s", diff)
	}
	if res.Passed() {
		t.Error("Passed() = true")
	}
}

func TestRunCall_UnusedTurns(t *testing.T) {
	t.Parallel()

	plan := graph.Plan{Steps: []graph.Step{{Name: "contact_email", Kind: capture.KindEmail}}}
	mgr := session.NewManager(plan, capture.NewRegistry(email.New()), nil)
	res, err := scenario.NewRunner(mgr).RunCall(context.Background(), scenario.Call{
		Name: "talks past the end",
		Turns: []scenario.Turn{
			{Say: "jane at gmail dot com", Confidence: 0.95},
			{Say: "and my number is oh four one two", Confidence: 0.9},
			{Say: "hello?", Confidence: 0.9},
		},
		Expect: scenario.Expect{Outcome: "completed"},
	})
	if err != nil {
		t.Fatalf("RunCall() error = %v", err)
	}
	if res.UnusedTurns != 2 || !res.Passed() {
		t.Errorf("RunCall() = %+v, want 2 unused turns and a pass", res)
	}
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()

	f, err := scenario.Load("testdata/contact.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := scenario.NewRunner(newManager()).Run(ctx, f); !errors.Is(err, context.Canceled) {
		t.Errorf("Run(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	doc := `
calls:
  - name: a
    turns:
      - say: hi
        confidence: 1.5
      - say: hi
        silence: true
    expect:
      outcome: done
      states:
        contact_email: finished
  - name: a
  - turns: []
`
	_, err := scenario.Parse(strings.NewReader(doc))
	if err == nil {
		t.Fatal("Parse() error = nil")
	}
	for _, want := range []string{
		"turns[0].confidence",
		"say and silence are exclusive",
		`outcome "done"`,
		"expect.states[contact_email]",
		`duplicate call name "a"`,
		"calls[2].name is required",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}

	if _, err := scenario.Parse(strings.NewReader("calls: []\nextra: 1\n")); err == nil {
		t.Error("Parse() accepted an unknown field")
	}
	if _, err := scenario.Load("testdata/missing.yaml"); err == nil {
		t.Error("Load(missing) error = nil")
	}
}

func TestTurn_Transcript(t *testing.T) {
	t.Parallel()

	if tr := (scenario.Turn{Silence: true}).Transcript(); !tr.Timeout || !tr.IsFinal || tr.Text != "" {
		t.Errorf("silence transcript = %+v", tr)
	}
	if tr := (scenario.Turn{Say: "hi", Confidence: 0.8}).Transcript(); tr.Timeout || tr.Text != "hi" || tr.Confidence != 0.8 {
		t.Errorf("speech transcript = %+v", tr)
	}
}
