package cli

import "errors"

// CLI-specific sentinel errors.
// These are validation/usage errors that don't belong to domain packages.

var (
	// ErrInvalidDuration indicates a duration flag could not be parsed or
	// is out of range.
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrInvalidRetryBudget indicates a negative --retries value.
	ErrInvalidRetryBudget = errors.New("retry budget cannot be negative")
)
