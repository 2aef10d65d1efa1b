package capture

import "fmt"

// Match is the verdict of a single [RepairRule].
type Match int

const (
	// NoMatch means the rule does not apply; the next rule is tried.
	NoMatch Match = iota

	// Matched means the rule isolated its component and produced a result.
	Matched

	// Ambiguous means the rule applies but cannot tell which component the
	// correction targets. Evaluation stops.
	Ambiguous
)

// RepairRule is one entry in a primitive's ordered correction matcher list.
type RepairRule struct {
	// Name identifies the rule in errors and metrics.
	Name string

	// Target is the component the rule rewrites, or "" for whole-value rules.
	Target string

	// Apply inspects the normalised correction and the previous components.
	Apply func(correction string, prev Components) (Components, Match)
}

// ApplyRules evaluates rules in priority order and returns the result of the
// first matching rule. No match, or an explicit ambiguity, yields an error
// wrapping [ErrAmbiguousCorrection].
func ApplyRules(rules []RepairRule, correction string, prev Components) (Components, error) {
	norm := Normalize(correction)
	if norm == "" {
		return prev.Clone(), fmt.Errorf("%w: empty correction", ErrAmbiguousCorrection)
	}
	for _, r := range rules {
		out, m := r.Apply(norm, prev.Clone())
		switch m {
		case Matched:
			return out, nil
		case Ambiguous:
			return prev.Clone(), fmt.Errorf("%w: rule %s", ErrAmbiguousCorrection, r.Name)
		}
	}
	return prev.Clone(), fmt.Errorf("%w: no component matched %q", ErrAmbiguousCorrection, correction)
}
