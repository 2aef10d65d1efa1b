// Package graph orders the objectives of a call.
//
// A [Plan] lists steps; a [Graph] instantiates one [objective.Objective] per
// step, activates them one at a time and issues the start and complete events
// the state machine expects from its surrounding graph. What happens when a
// step fails is the plan's [Policy]; a failed critical step always aborts.
package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Spotfunnel/voiceOS-sub001/internal/capture"
)

// ErrInvalidPlan is returned for plans that cannot be run.
var ErrInvalidPlan = errors.New("graph: invalid plan")

// Policy decides what happens after a non-critical step fails.
type Policy int

const (
	// PolicyAbort ends the graph at the first failed step.
	PolicyAbort Policy = iota

	// PolicySkip moves on to the next step after a non-critical failure.
	PolicySkip
)

// String returns the configuration name of the policy.
func (p Policy) String() string {
	switch p {
	case PolicyAbort:
		return "abort"
	case PolicySkip:
		return "skip"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses a configuration value. The empty string is
// [PolicyAbort].
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort":
		return PolicyAbort, nil
	case "skip":
		return PolicySkip, nil
	default:
		return 0, fmt.Errorf("graph: unknown failure policy %q (want abort or skip)", s)
	}
}

// Step is one objective of a plan.
type Step struct {
	// Name tags the objective (for example "contact_email"). Unique per plan.
	Name string

	Kind     capture.Kind
	Critical bool
}

// Plan is an ordered list of steps plus the failure policy.
type Plan struct {
	Steps     []Step
	OnFailure Policy
}

// Validate checks that the plan is non-empty, step names are unique and every
// kind is registered in reg.
func (p Plan) Validate(reg *capture.Registry) error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidPlan)
	}
	var errs []error
	seen := make(map[string]bool, len(p.Steps))
	for i, s := range p.Steps {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("%w: step %d: name is required", ErrInvalidPlan, i))
		} else if seen[s.Name] {
			errs = append(errs, fmt.Errorf("%w: step %d: duplicate name %q", ErrInvalidPlan, i, s.Name))
		}
		seen[s.Name] = true
		if _, err := reg.Get(s.Kind); err != nil {
			errs = append(errs, fmt.Errorf("%w: step %q: %w", ErrInvalidPlan, s.Name, err))
		}
	}
	return errors.Join(errs...)
}
