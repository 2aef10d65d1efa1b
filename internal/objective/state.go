// Package objective implements the deterministic per-objective state machine
// that governs how a single structured field is elicited, confirmed, repaired
// and completed during a call.
//
// The machine is the only component allowed to decide conversational control
// flow for an objective. Language models may phrase prompts, but every move
// between states is the result of an explicit [Machine.Transition] call whose
// outcome depends only on the current state, the event name, and the event
// payload (recognised-speech confidence, validator verdict). Illegal events
// are no-ops.
//
// A [Machine] is not safe for concurrent use. It is owned by exactly one call
// session, which serialises events before they reach it.
package objective

import "fmt"

// State is the lifecycle position of an objective. The set of states is
// closed: the only valid values are the constants declared below.
type State int

const (
	// StatePending is the initial state before the objective graph activates
	// the objective.
	StatePending State = iota

	// StateEliciting means the caller is being asked for the value.
	StateEliciting

	// StateCaptured means a value was recognised with sufficient confidence
	// and awaits validation.
	StateCaptured

	// StateConfirming means the caller is asked to confirm the captured value.
	StateConfirming

	// StateRepairing means the captured value is being corrected, either after
	// a failed validation or a caller correction.
	StateRepairing

	// StateConfirmed means the value is accepted and awaits completion by the
	// objective graph.
	StateConfirmed

	// StateCompleted is terminal: the objective finished successfully.
	StateCompleted

	// StateFailed is terminal: the retry limit was exceeded.
	StateFailed

	numStates
)

// States returns every valid state in declaration order.
func States() []State {
	out := make([]State, 0, numStates)
	for s := StatePending; s < numStates; s++ {
		out = append(out, s)
	}
	return out
}

// String returns the lower-case state name used in logs and audit records.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateEliciting:
		return "eliciting"
	case StateCaptured:
		return "captured"
	case StateConfirming:
		return "confirming"
	case StateRepairing:
		return "repairing"
	case StateConfirmed:
		return "confirmed"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// IsValid reports whether s is one of the declared states.
func (s State) IsValid() bool {
	return s >= StatePending && s < numStates
}

// IsTerminal reports whether s ends the objective's lifecycle.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// ParseState converts a state name produced by [State.String] back to a State.
func ParseState(name string) (State, error) {
	for _, s := range States() {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("objective: unknown state %q", name)
}
