package objective

// Policy constants. They are part of the safety layer and intentionally not
// exposed through configuration.
const (
	// ElicitAcceptThreshold is the minimum recognition confidence for a
	// spoken value to be captured.
	ElicitAcceptThreshold = 0.4

	// ConfirmSkipThreshold is the validator confidence at or above which a
	// non-critical value skips explicit confirmation.
	ConfirmSkipThreshold = 0.7

	// DefaultMaxRetries is the number of consecutive sub-threshold utterances
	// tolerated before an objective fails.
	DefaultMaxRetries = 3
)

// Outcome is the decision taken when a captured value is validated.
type Outcome int

const (
	// OutcomeRepair sends the objective to [StateRepairing].
	OutcomeRepair Outcome = iota

	// OutcomeConfirm asks the caller to confirm the value.
	OutcomeConfirm

	// OutcomeSkipToConfirmed accepts the value without asking.
	OutcomeSkipToConfirmed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeRepair:
		return "repair"
	case OutcomeConfirm:
		return "confirm"
	case OutcomeSkipToConfirmed:
		return "skip_to_confirmed"
	default:
		return "unknown"
	}
}

// Decide maps a validation verdict to a confirmation decision. Critical fields
// are always confirmed; non-critical fields skip confirmation only when the
// validator is confident.
func Decide(isValid, isCritical bool, confidence float64) Outcome {
	switch {
	case !isValid:
		return OutcomeRepair
	case isCritical || confidence < ConfirmSkipThreshold:
		return OutcomeConfirm
	default:
		return OutcomeSkipToConfirmed
	}
}

// target returns the state an outcome leads to.
func (o Outcome) target() State {
	switch o {
	case OutcomeConfirm:
		return StateConfirming
	case OutcomeSkipToConfirmed:
		return StateConfirmed
	default:
		return StateRepairing
	}
}
