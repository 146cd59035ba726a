package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the reconciler, stats aggregator and watch evaluator.
// Callers match with errors.Is; concrete errors wrap one of these with context.
var (
	// ErrValidation indicates malformed input. Nothing was written.
	ErrValidation = errors.New("validation failed")

	// ErrConflict indicates a uniqueness violation, e.g. a duplicate signature or wallet.
	ErrConflict = errors.New("conflict")

	// ErrNotFound indicates the referenced user, transaction or alert does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNetworkUnavailable indicates the ledger could not be reached or timed out.
	// It is never reported as ErrNotFound.
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrInvalidTransition indicates a status change outside pending->confirmed|failed.
	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", ErrConflict)
)

// Validationf returns an ErrValidation carrying a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
