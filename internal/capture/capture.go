// Package capture defines the capture-primitive contract shared by every
// structured field kind (email, phone, address, date/time).
//
// A [Primitive] turns a spoken transcript into named [Components], renders a
// natural confirmation phrase for them, and applies targeted incremental
// repair when the caller corrects only part of a previously captured value.
// Primitives are pure: they hold configuration only, never per-call state,
// so one instance may be shared by many concurrent sessions. The last known
// components for a call are retained by the owning objective.
package capture

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Kind names a structured field kind.
type Kind string

const (
	KindEmail    Kind = "email"
	KindPhone    Kind = "phone"
	KindAddress  Kind = "address"
	KindDateTime Kind = "datetime"
)

// Kinds lists every supported kind.
func Kinds() []Kind {
	return []Kind{KindEmail, KindPhone, KindAddress, KindDateTime}
}

// IsValid reports whether k is a supported kind.
func (k Kind) IsValid() bool {
	return slices.Contains(Kinds(), k)
}

// Label is the spoken noun used in prompts ("your email address").
func (k Kind) Label() string {
	switch k {
	case KindEmail:
		return "email address"
	case KindPhone:
		return "phone number"
	case KindAddress:
		return "address"
	case KindDateTime:
		return "preferred date and time"
	default:
		return string(k)
	}
}

var (
	// ErrLowConfidenceCapture marks a parse that could not extract any
	// component with reasonable certainty. It is an outcome, not a failure:
	// the objective treats it as a sub-threshold utterance.
	ErrLowConfidenceCapture = errors.New("capture: low confidence capture")

	// ErrAmbiguousCorrection is returned by [Primitive.IncrementalRepair] when
	// a correction cannot be mapped to exactly one component. Callers should
	// re-elicit the whole value instead of guessing.
	ErrAmbiguousCorrection = errors.New("capture: ambiguous correction")

	// ErrUnknownKind is returned by [Registry.Get] for unregistered kinds.
	ErrUnknownKind = errors.New("capture: unknown kind")
)

// LowConfidenceThreshold is the parse confidence below which a result is
// flagged as a low-confidence capture.
const LowConfidenceThreshold = 0.4

// Components is the named decomposition of a captured value. Field names are
// primitive-specific; see each primitive's package for its constants.
type Components map[string]string

// Get returns the named component or "".
func (c Components) Get(name string) string { return c[name] }

// With returns a copy of c with name set to value.
func (c Components) With(name, value string) Components {
	out := c.Clone()
	out[name] = value
	return out
}

// Clone returns an independent copy of c. A nil receiver yields an empty map.
func (c Components) Clone() Components {
	out := make(Components, len(c))
	maps.Copy(out, c)
	return out
}

// Equal reports whether c and o hold the same non-empty components.
func (c Components) Equal(o Components) bool {
	for k, v := range c {
		if o[k] != v {
			return false
		}
	}
	for k, v := range o {
		if c[k] != v {
			return false
		}
	}
	return true
}

// Empty reports whether every component is blank.
func (c Components) Empty() bool {
	for _, v := range c {
		if v != "" {
			return false
		}
	}
	return true
}

// ParseResult is the outcome of [Primitive.Parse].
type ParseResult struct {
	Components Components

	// Confidence is the primitive's certainty in the extraction, in [0, 1].
	Confidence float64

	// LowConfidence is set when Confidence is below [LowConfidenceThreshold].
	LowConfidence bool
}

// Err returns [ErrLowConfidenceCapture] for low-confidence results.
func (r ParseResult) Err() error {
	if r.LowConfidence {
		return ErrLowConfidenceCapture
	}
	return nil
}

// NewParseResult builds a ParseResult, clamping confidence and deriving the
// low-confidence flag.
func NewParseResult(c Components, confidence float64) ParseResult {
	confidence = min(max(confidence, 0), 1)
	if c == nil {
		c = Components{}
	}
	return ParseResult{
		Components:    c,
		Confidence:    confidence,
		LowConfidence: confidence < LowConfidenceThreshold,
	}
}

// Primitive is implemented by each field kind.
//
// Implementations must be safe for concurrent use and must never panic on
// malformed input.
type Primitive interface {
	// Kind returns the field kind handled by the primitive.
	Kind() Kind

	// Fields lists component names in canonical order.
	Fields() []string

	// Parse extracts components from a spoken transcript. Malformed input
	// yields a low-confidence, possibly partial result.
	Parse(raw string) ParseResult

	// Compose renders components as the canonical string value.
	Compose(c Components) string

	// ConfirmationPhrase renders a natural confirmation question. Values are
	// never spelled out character by character.
	ConfirmationPhrase(c Components) string

	// IncrementalRepair applies a partial correction to prev and returns the
	// updated components. Components the correction does not target are
	// returned untouched. Returns an error wrapping [ErrAmbiguousCorrection]
	// when the targeted component cannot be isolated.
	IncrementalRepair(correction string, prev Components) (Components, error)

	// Vocabulary returns recognition hints for the speech layer (provider
	// names, place names) relevant to this kind.
	Vocabulary() []string
}

// Checker is implemented by primitives that can check the structural
// validity of components (syntax, ranges, cross-field consistency).
type Checker interface {
	Valid(c Components) bool
}

// Registry maps kinds to primitives.
type Registry struct {
	primitives map[Kind]Primitive
}

// NewRegistry returns a registry holding the given primitives. Later entries
// replace earlier ones of the same kind.
func NewRegistry(ps ...Primitive) *Registry {
	r := &Registry{primitives: make(map[Kind]Primitive, len(ps))}
	for _, p := range ps {
		r.primitives[p.Kind()] = p
	}
	return r
}

// Get returns the primitive registered for k.
func (r *Registry) Get(k Kind) (Primitive, error) {
	p, ok := r.primitives[k]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	return p, nil
}

// Kinds returns the registered kinds in a stable order.
func (r *Registry) Kinds() []Kind {
	out := slices.Collect(maps.Keys(r.primitives))
	slices.Sort(out)
	return out
}
