package objective_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/Spotfunnel/voiceOS-sub001/internal/capture"
	"github.com/Spotfunnel/voiceOS-sub001/internal/capture/email"
	"github.com/Spotfunnel/voiceOS-sub001/internal/capture/phone"
	"github.com/Spotfunnel/voiceOS-sub001/internal/objective"
)

func TestObjective_EmailCorrectionFlow(t *testing.T) {
	t.Parallel()

	o := objective.New("contact_email", email.New(), true)
	if got := o.Start(); got != objective.StateEliciting {
		t.Fatalf("Start() = %s, want eliciting", got)
	}
	if !strings.Contains(o.Prompt(), "email address") {
		t.Errorf("Prompt() = %q, want it to ask for the email address", o.Prompt())
	}

	r, st := o.HandleUtterance("it's jane at gmail dot com", 0.92)
	if st != objective.StateCaptured {
		t.Fatalf("HandleUtterance state = %s (parse confidence %.2f), want captured", st, r.Confidence)
	}
	if v, _ := o.Value(); v != "jane@gmail.com" {
		t.Fatalf("Value() = %q, want %q", v, "jane@gmail.com")
	}

	if got := o.Validate(true, 0.95); got != objective.StateConfirming {
		t.Fatalf("Validate() = %s, want confirming for a critical objective", got)
	}
	prompt := o.Prompt()
	if !strings.Contains(prompt, "jane at gmail dot com") {
		t.Errorf("confirming Prompt() = %q, want the spoken form of the address", prompt)
	}

	st, err := o.HandleCorrection("no, it's jaine with an i")
	if err != nil {
		t.Fatalf("HandleCorrection() error = %v", err)
	}
	if st != objective.StateConfirming {
		t.Fatalf("HandleCorrection() = %s, want confirming", st)
	}
	if v, _ := o.Value(); v != "jaine@gmail.com" {
		t.Errorf("Value() after correction = %q, want %q", v, "jaine@gmail.com")
	}
	if got := o.Components().Get(email.FieldDomain); got != "gmail.com" {
		t.Errorf("domain after correction = %q, want untouched gmail.com", got)
	}

	if got := o.Affirm(); got != objective.StateConfirmed {
		t.Fatalf("Affirm() = %s, want confirmed", got)
	}
	if got := o.Complete(); got != objective.StateCompleted {
		t.Fatalf("Complete() = %s, want completed", got)
	}

	var events []objective.EventName
	for _, tr := range o.Transitions() {
		events = append(events, tr.Event)
	}
	want := []objective.EventName{
		objective.EventStart, objective.EventUserSpoke, objective.EventValidate,
		objective.EventUserCorrected, objective.EventRepaired,
		objective.EventUserAffirmed, objective.EventComplete,
	}
	if strings.Join(toStrings(events), ",") != strings.Join(toStrings(want), ",") {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func toStrings(evs []objective.EventName) []string {
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = string(e)
	}
	return out
}

func TestObjective_PhoneSuffixRepair(t *testing.T) {
	t.Parallel()

	o := objective.New("callback_number", phone.New(), true)
	o.Start()
	if _, st := o.HandleUtterance("oh four one two three four five six seven eight", 0.9); st != objective.StateCaptured {
		t.Fatalf("HandleUtterance state = %s, want captured", st)
	}
	o.Validate(true, 0.9)

	if _, err := o.HandleCorrection("ending in 6789"); err != nil {
		t.Fatalf("HandleCorrection() error = %v", err)
	}
	v, _ := o.Value()
	if v != "0412346789" {
		t.Errorf("Value() = %q, want %q", v, "0412346789")
	}
}

func TestObjective_AmbiguousCorrection(t *testing.T) {
	t.Parallel()

	o := objective.New("callback_number", phone.New(), true)
	o.Start()
	o.HandleUtterance("0412 345 678", 0.9)
	o.Validate(true, 0.9)

	before := o.Transitions()
	st, err := o.HandleCorrection("six seven")
	if !errors.Is(err, capture.ErrAmbiguousCorrection) {
		t.Fatalf("HandleCorrection() error = %v, want ErrAmbiguousCorrection", err)
	}
	if st != objective.StateConfirming {
		t.Errorf("state after ambiguous correction = %s, want confirming", st)
	}
	if len(o.Transitions()) != len(before) {
		t.Error("ambiguous correction recorded transitions")
	}

	if got := o.Reelicit(); got != objective.StateEliciting {
		t.Fatalf("Reelicit() = %s, want eliciting", got)
	}
	if _, ok := o.Value(); ok {
		t.Error("Value() still set after Reelicit")
	}
	if !o.Components().Empty() {
		t.Error("Components() not cleared by Reelicit")
	}
}

func TestObjective_ValidationFailure(t *testing.T) {
	t.Parallel()

	o := objective.New("contact_email", email.New(), false)
	o.Start()
	o.HandleUtterance("jane at gmail dot com", 0)
	if got := o.Validate(false, 0.9); got != objective.StateRepairing {
		t.Fatalf("Validate(false) = %s, want repairing", got)
	}
	if !errors.Is(o.Err(), objective.ErrValidationFailure) {
		t.Errorf("Err() = %v, want ErrValidationFailure", o.Err())
	}

	// Neither a single-component repair nor a confident full value.
	st, err := o.HandleCorrection("that's wrong")
	if !errors.Is(err, capture.ErrAmbiguousCorrection) || st != objective.StateRepairing {
		t.Fatalf("HandleCorrection(that's wrong) = %s, %v; want repairing, ErrAmbiguousCorrection", st, err)
	}

	// A full restatement is accepted while repairing.
	st, err = o.HandleCorrection("jane dot doe at outlook dot com")
	if err != nil {
		t.Fatalf("HandleCorrection() error = %v", err)
	}
	if st != objective.StateConfirming {
		t.Errorf("HandleCorrection() = %s, want confirming", st)
	}
	if v, _ := o.Value(); v != "jane.doe@outlook.com" {
		t.Errorf("Value() = %q, want %q", v, "jane.doe@outlook.com")
	}
	if o.Err() != nil {
		t.Errorf("Err() = %v after repair, want nil", o.Err())
	}
}

func TestObjective_LowConfidenceToFailure(t *testing.T) {
	t.Parallel()

	o := objective.New("contact_email", email.New(), false)
	o.Start()

	// Mumbles parse with low confidence; a silent caller times out.
	o.HandleUtterance("mmm", 0.8)
	if !strings.Contains(o.Prompt(), "again") {
		t.Errorf("retry Prompt() = %q, want a re-ask", o.Prompt())
	}
	o.HandleTimeout()
	if _, st := o.HandleUtterance("jane at gmail dot com", 0.1); st != objective.StateFailed {
		t.Fatalf("state = %s, want failed", st)
	}
	if !errors.Is(o.Err(), objective.ErrRetryLimitExceeded) {
		t.Errorf("Err() = %v, want ErrRetryLimitExceeded", o.Err())
	}
	if o.Prompt() == "" {
		t.Error("failed Prompt() is empty")
	}
}

func TestObjective_CorrectionOutsideConfirmation(t *testing.T) {
	t.Parallel()

	o := objective.New("contact_email", email.New(), false)
	o.Start()
	if _, err := o.HandleCorrection("it's jaine"); !errors.Is(err, objective.ErrNotConfirming) {
		t.Errorf("HandleCorrection() in eliciting error = %v, want ErrNotConfirming", err)
	}
}

func TestObjective_RawTransitionSyncsComponents(t *testing.T) {
	t.Parallel()

	o := objective.New("contact_email", email.New(), true)
	o.Transition(objective.EventStart, nil)
	o.Transition(objective.EventUserSpoke, objective.EventData{"confidence": 0.9, "value": "jane@gmail.com"})

	c := o.Components()
	if c.Get(email.FieldLocalPart) != "jane" || c.Get(email.FieldDomain) != "gmail.com" {
		t.Errorf("Components() = %v, want components derived from the value", c)
	}
	if o.Kind() != capture.KindEmail || !o.Critical() {
		t.Errorf("Kind()/Critical() = %s/%v, want email/true", o.Kind(), o.Critical())
	}
}
