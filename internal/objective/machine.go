package objective

import (
	"maps"
	"slices"
	"time"
)

// rule is one row of the transition table. apply evaluates the row's guard
// against the payload, updates captured value and retry count, and returns
// the next state. Returning the current state means "no state change".
type rule struct {
	from  State
	event EventName
	apply func(m *Machine, data EventData) State
}

// rules is the single source of truth for both [Machine.Transition] and
// [Machine.CanTransition]. At most one row exists per (from, event) pair.
var rules = []rule{
	{StatePending, EventStart, func(*Machine, EventData) State { return StateEliciting }},
	{StateEliciting, EventUserSpoke, (*Machine).applyUserSpoke},
	{StateCaptured, EventValidate, (*Machine).applyValidate},
	{StateConfirming, EventUserAffirmed, func(*Machine, EventData) State { return StateConfirmed }},
	{StateConfirming, EventUserCorrected, (*Machine).applyUserCorrected},
	{StateRepairing, EventRepaired, (*Machine).applyRepaired},
	{StateConfirmed, EventComplete, func(*Machine, EventData) State { return StateCompleted }},
}

func lookupRule(from State, event EventName) (rule, bool) {
	for _, r := range rules {
		if r.from == from && r.event == event {
			return r, true
		}
	}
	return rule{}, false
}

// MachineOption configures a [Machine].
type MachineOption func(*Machine)

// WithClock overrides the clock used to timestamp transitions.
func WithClock(now func() time.Time) MachineOption {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithObserver registers fn to receive a copy of every recorded transition,
// in order, immediately after it is appended to the log.
func WithObserver(fn func(Transition)) MachineOption {
	return func(m *Machine) {
		if fn != nil {
			m.observers = append(m.observers, fn)
		}
	}
}

// Machine is the deterministic automaton for a single objective.
//
// Initial state is [StatePending]; [StateCompleted] and [StateFailed] are
// terminal. Events that do not match a row of the transition table for the
// current state leave the machine untouched.
type Machine struct {
	critical   bool
	maxRetries int

	state    State
	value    string
	hasValue bool
	retries  int
	log      []Transition

	now       func() time.Time
	observers []func(Transition)
}

// NewMachine returns a machine in [StatePending]. critical is fixed for the
// machine's lifetime: critical values are always explicitly confirmed.
func NewMachine(critical bool, opts ...MachineOption) *Machine {
	m := &Machine{
		critical:   critical,
		maxRetries: DefaultMaxRetries,
		state:      StatePending,
		now:        time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Transition applies event to the machine and returns the resulting state.
// A [Transition] record is appended only when the state actually changes.
func (m *Machine) Transition(event EventName, data EventData) State {
	r, ok := lookupRule(m.state, event)
	if !ok {
		return m.state
	}

	from := m.state
	to := r.apply(m, data)
	if to == from {
		return m.state
	}

	m.state = to
	t := Transition{
		From:      from,
		To:        to,
		Event:     event,
		Timestamp: m.now(),
		Data:      maps.Clone(data),
	}
	m.log = append(m.log, t)
	for _, fn := range m.observers {
		fn(t.clone())
	}
	return m.state
}

// CanTransition reports whether event is declared for the current state.
// It is an input-validation aid only; [Machine.Transition] stays
// authoritative and is safe to call with any event.
func (m *Machine) CanTransition(event EventName) bool {
	_, ok := lookupRule(m.state, event)
	return ok
}

// LegalEvents lists the events declared for the current state in table order.
func (m *Machine) LegalEvents() []EventName {
	var out []EventName
	for _, r := range rules {
		if r.from == m.state && !slices.Contains(out, r.event) {
			out = append(out, r.event)
		}
	}
	return out
}

// Reset returns the machine to [StatePending] and clears the captured value,
// retry count and transition log. Criticality and observers are retained.
func (m *Machine) Reset() {
	m.state = StatePending
	m.value = ""
	m.hasValue = false
	m.retries = 0
	m.log = nil
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Critical reports whether the objective is critical.
func (m *Machine) Critical() bool { return m.critical }

// Value returns the captured value and whether one has been stored.
func (m *Machine) Value() (string, bool) { return m.value, m.hasValue }

// RetryCount returns the number of sub-threshold utterances seen while
// eliciting.
func (m *Machine) RetryCount() int { return m.retries }

// MaxRetries returns the retry limit.
func (m *Machine) MaxRetries() int { return m.maxRetries }

// Transitions returns a copy of the transition log.
func (m *Machine) Transitions() []Transition {
	out := make([]Transition, len(m.log))
	for i, t := range m.log {
		out[i] = t.clone()
	}
	return out
}

// LastTransition returns the most recent transition, if any.
func (m *Machine) LastTransition() (Transition, bool) {
	if len(m.log) == 0 {
		return Transition{}, false
	}
	return m.log[len(m.log)-1].clone(), true
}

func (m *Machine) applyUserSpoke(data EventData) State {
	if data.Float(KeyConfidence) >= ElicitAcceptThreshold {
		v, _ := data.String(KeyValue)
		m.value, m.hasValue = v, true
		return StateCaptured
	}
	m.retries++
	if m.retries >= m.maxRetries {
		return StateFailed
	}
	return StateEliciting
}

func (m *Machine) applyValidate(data EventData) State {
	// Criticality belongs to the objective. KeyIsCritical in the payload is
	// informational and never changes the decision.
	return Decide(data.Bool(KeyIsValid), m.critical, data.Float(KeyConfidence)).target()
}

func (m *Machine) applyUserCorrected(data EventData) State {
	if v, ok := data.String(KeyNewValue); ok {
		m.value, m.hasValue = v, true
	}
	return StateRepairing
}

func (m *Machine) applyRepaired(data EventData) State {
	if v, ok := data.String(KeyValue); ok {
		m.value, m.hasValue = v, true
	}
	return StateConfirming
}
