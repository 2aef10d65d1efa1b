package validate

import (
	"context"
	"fmt"

	"github.com/Spotfunnel/voiceOS-sub001/internal/capture"
)

// RuleSource is the Verdict.Source of [RuleValidator].
const RuleSource = "rules"

// RuleValidator checks values against the format rules of their primitive.
// Its verdicts are certain (confidence 1).
type RuleValidator struct {
	reg *capture.Registry
}

// NewRuleValidator returns a RuleValidator over reg.
func NewRuleValidator(reg *capture.Registry) *RuleValidator {
	return &RuleValidator{reg: reg}
}

// Validate implements [Validator]. Primitives implementing [capture.Checker]
// decide validity; for others a value is valid when it re-parses with
// acceptable confidence.
func (v *RuleValidator) Validate(ctx context.Context, req Request) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}
	prim, err := v.reg.Get(req.Kind)
	if err != nil {
		return Verdict{}, fmt.Errorf("validate: rules: %w: %w", ErrUnsupportedKind, err)
	}

	c := req.Components
	if c.Empty() {
		c = prim.Parse(req.Value).Components
	}

	var ok bool
	if chk, isChecker := prim.(capture.Checker); isChecker {
		ok = chk.Valid(c)
	} else {
		ok = !prim.Parse(prim.Compose(c)).LowConfidence
	}

	reason := "format check passed"
	if !ok {
		reason = "format check failed for " + req.Kind.Label()
	}
	return Verdict{IsValid: ok, Confidence: 1, Reason: reason, Source: RuleSource}, nil
}
