// Package validate defines the validator collaborator that judges a captured
// value before the state machine decides between repair, confirmation and
// skipping confirmation.
//
// A [Validator] returns a [Verdict]; the session forwards it unchanged as the
// is_valid and confidence payload of a validate event. Validators never move
// the state machine themselves. [RuleValidator] is the deterministic
// format check backed by the capture primitives; [Chain] gates any number of
// judges (for example the LLM validator in llmvalidate) behind it and fails
// over between them.
package validate

import (
	"context"
	"errors"

	"github.com/Spotfunnel/voiceOS-sub001/internal/capture"
)

// ErrUnsupportedKind is returned when no primitive is registered for the
// requested kind.
var ErrUnsupportedKind = errors.New("validate: unsupported kind")

// Request describes the value to judge.
type Request struct {
	// Objective is the objective name from the plan (e.g. "callback_number").
	Objective string

	// Kind selects the primitive.
	Kind capture.Kind

	// Value is the composed canonical value.
	Value string

	// Components are the parsed fields. When nil, validators re-parse Value.
	Components capture.Components
}

// Verdict is a validator's opinion of a captured value.
type Verdict struct {
	IsValid bool

	// Confidence is the validator's certainty in IsValid (0.0–1.0).
	Confidence float64

	// Reason is a short free-text explanation for logs and audit. It is never
	// spoken to the caller.
	Reason string

	// Source names the validator that produced the verdict.
	Source string
}

// Validator judges captured values. Implementations must be safe for
// concurrent use.
type Validator interface {
	Validate(ctx context.Context, req Request) (Verdict, error)
}

// ValidatorFunc adapts a function to [Validator].
type ValidatorFunc func(ctx context.Context, req Request) (Verdict, error)

// Validate calls f.
func (f ValidatorFunc) Validate(ctx context.Context, req Request) (Verdict, error) {
	return f(ctx, req)
}

func clamp(c float64) float64 {
	return max(0, min(1, c))
}
