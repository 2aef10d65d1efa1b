package objective

import (
	"errors"
	"fmt"

	"github.com/Spotfunnel/voiceOS-sub001/internal/capture"
)

// Objective binds one [Machine] to one [capture.Primitive] plus the metadata
// fixed at creation time. It retains the last known components of the value
// so that terse corrections can be applied incrementally.
//
// Like [Machine], an Objective is owned by a single session and is not safe
// for concurrent use.
type Objective struct {
	// Type is the objective's tag within its graph (for example "contact_email").
	Type string

	prim       capture.Primitive
	m          *Machine
	components capture.Components
	confidence float64
}

// New returns a pending objective of the given type. critical is immutable.
func New(objType string, prim capture.Primitive, critical bool, opts ...MachineOption) *Objective {
	return &Objective{
		Type: objType,
		prim: prim,
		m:    NewMachine(critical, opts...),
	}
}

// Kind returns the field kind of the bound primitive.
func (o *Objective) Kind() capture.Kind { return o.prim.Kind() }

// Primitive returns the bound capture primitive.
func (o *Objective) Primitive() capture.Primitive { return o.prim }

// Critical reports whether the objective always requires confirmation.
func (o *Objective) Critical() bool { return o.m.Critical() }

// State returns the current state.
func (o *Objective) State() State { return o.m.State() }

// Value returns the captured value, if any.
func (o *Objective) Value() (string, bool) { return o.m.Value() }

// Components returns a copy of the last known components.
func (o *Objective) Components() capture.Components { return o.components.Clone() }

// Confidence returns the confidence of the most recent capture attempt.
func (o *Objective) Confidence() float64 { return o.confidence }

// RetryCount returns the number of sub-threshold utterances so far.
func (o *Objective) RetryCount() int { return o.m.RetryCount() }

// MaxRetries returns the retry limit.
func (o *Objective) MaxRetries() int { return o.m.MaxRetries() }

// Transitions returns a copy of the transition log.
func (o *Objective) Transitions() []Transition { return o.m.Transitions() }

// CanTransition reports whether event is declared for the current state.
func (o *Objective) CanTransition(event EventName) bool { return o.m.CanTransition(event) }

// LegalEvents lists the events declared for the current state.
func (o *Objective) LegalEvents() []EventName { return o.m.LegalEvents() }

// Transition forwards a raw event to the machine. When the event changes the
// captured value, the retained components are re-derived from it.
func (o *Objective) Transition(event EventName, data EventData) State {
	before, _ := o.m.Value()
	st := o.m.Transition(event, data)
	if after, ok := o.m.Value(); ok && after != before && after != o.prim.Compose(o.components) {
		o.components = o.prim.Parse(after).Components
	}
	return st
}

// Reset returns the objective to [StatePending] and forgets the captured
// components.
func (o *Objective) Reset() {
	o.m.Reset()
	o.components = nil
	o.confidence = 0
}

// Start activates the objective.
func (o *Objective) Start() State {
	return o.m.Transition(EventStart, nil)
}

// HandleUtterance parses a recognised utterance and feeds it to the machine
// as a user_spoke event. The effective confidence is the lower of the
// recogniser's and the parser's; an sttConfidence of 0 means the recogniser
// gave none. Low-confidence parses count as sub-threshold utterances.
func (o *Objective) HandleUtterance(text string, sttConfidence float64) (capture.ParseResult, State) {
	r := o.prim.Parse(text)
	conf := r.Confidence
	if sttConfidence > 0 {
		conf = min(conf, sttConfidence)
	}
	if o.m.State() != StateEliciting {
		return r, o.m.State()
	}
	o.confidence = conf

	st := o.m.Transition(EventUserSpoke, EventData{
		KeyConfidence: conf,
		KeyValue:      o.prim.Compose(r.Components),
	})
	if st == StateCaptured {
		o.components = r.Components.Clone()
	}
	return r, st
}

// HandleTimeout records caller silence as a sub-threshold utterance.
func (o *Objective) HandleTimeout() State {
	return o.m.Transition(EventUserSpoke, EventData{KeyConfidence: 0.0})
}

// Validate feeds a validator verdict to the machine.
func (o *Objective) Validate(isValid bool, confidence float64) State {
	return o.m.Transition(EventValidate, EventData{
		KeyIsValid:    isValid,
		KeyConfidence: confidence,
		KeyIsCritical: o.m.Critical(),
	})
}

// Affirm records the caller confirming the value.
func (o *Objective) Affirm() State {
	return o.m.Transition(EventUserAffirmed, nil)
}

// HandleCorrection applies a correction utterance to the retained components.
//
// In [StateConfirming] the correction must isolate one component; otherwise
// an error wrapping [capture.ErrAmbiguousCorrection] is returned and the
// machine is left untouched so the caller can call [Objective.Reelicit].
// In [StateRepairing] (after a failed validation) an ambiguous correction
// falls back to parsing the utterance as a complete value.
func (o *Objective) HandleCorrection(text string) (State, error) {
	st := o.m.State()
	if st != StateConfirming && st != StateRepairing {
		return st, fmt.Errorf("objective: correction in state %s: %w", st, ErrNotConfirming)
	}

	updated, err := o.prim.IncrementalRepair(text, o.components)
	if err != nil {
		if st != StateRepairing || !errors.Is(err, capture.ErrAmbiguousCorrection) {
			return st, fmt.Errorf("objective: correction: %w", err)
		}
		r := o.prim.Parse(text)
		if r.LowConfidence {
			return st, fmt.Errorf("objective: correction: %w", err)
		}
		updated = r.Components
	}

	value := o.prim.Compose(updated)
	if st == StateConfirming {
		o.m.Transition(EventUserCorrected, EventData{KeyNewValue: value})
	}
	o.components = updated
	return o.m.Transition(EventRepaired, EventData{KeyValue: value}), nil
}

// Reelicit discards the captured value and asks for it again from scratch.
func (o *Objective) Reelicit() State {
	o.Reset()
	return o.Start()
}

// Complete marks a confirmed objective as done.
func (o *Objective) Complete() State {
	return o.m.Transition(EventComplete, nil)
}

// Err reports the error condition implied by the current state, if any.
func (o *Objective) Err() error {
	switch o.m.State() {
	case StateFailed:
		return ErrRetryLimitExceeded
	case StateRepairing:
		if t, ok := o.m.LastTransition(); ok && t.Event == EventValidate {
			return ErrValidationFailure
		}
	}
	return nil
}

// Prompt returns what the agent should say for the current state. The text is
// plain and natural; a language model may rephrase it but never decides which
// prompt applies.
func (o *Objective) Prompt() string {
	label := o.prim.Kind().Label()
	switch o.m.State() {
	case StateEliciting:
		if o.m.RetryCount() > 0 {
			return "Sorry, I didn't quite catch that. Could you tell me your " + label + " again?"
		}
		return "Could I please get your " + label + "?"
	case StateCaptured:
		return "Thanks, one moment while I check that."
	case StateConfirming:
		return o.prim.ConfirmationPhrase(o.components)
	case StateRepairing:
		return "Sorry about that. What should your " + label + " be?"
	case StateConfirmed:
		return "Great, thank you."
	case StateFailed:
		return "I'm having trouble getting your " + label + ", so let's move on for now."
	default:
		return ""
	}
}
