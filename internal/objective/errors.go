package objective

import "errors"

var (
	// ErrRetryLimitExceeded is reported by [Objective.Err] once repeated
	// low-confidence speech has driven the objective to [StateFailed].
	ErrRetryLimitExceeded = errors.New("objective: retry limit exceeded")

	// ErrValidationFailure is reported by [Objective.Err] while the objective
	// is repairing a value the validator rejected.
	ErrValidationFailure = errors.New("objective: captured value failed validation")

	// ErrNotConfirming is returned when a correction or affirmation arrives
	// while the objective is not waiting for one.
	ErrNotConfirming = errors.New("objective: objective is not awaiting confirmation or repair")
)
