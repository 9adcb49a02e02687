package turn

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDecision is wrapped by every ValidationError.
	ErrInvalidDecision = errors.New("turn: invalid decision")
	// ErrTimeout means the turn exceeded its wall-clock budget. Nothing is
	// produced and nothing is committed.
	ErrTimeout = errors.New("turn: wall-clock budget exceeded")
	// ErrNonFinite is raised when a company's numbers stop being finite.
	ErrNonFinite = errors.New("turn: non-finite value")
	// ErrInvalidTransition is raised on an illegal status change.
	ErrInvalidTransition = errors.New("turn: invalid status transition")
)

// ValidationError describes why a submitted decision was rejected. The
// engine recovers from it by substituting the no-change decision.
type ValidationError struct {
	CompanyID string
	Field     string
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: company %s: %s: %s", ErrInvalidDecision, e.CompanyID, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidDecision }

func invalid(companyID, field, format string, args ...any) *ValidationError {
	return &ValidationError{CompanyID: companyID, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ComputationError aborts one company's turn. Its prior state is kept and
// the other companies are unaffected.
type ComputationError struct {
	CompanyID string
	Stage     Stage
	Err       error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("turn: company %s failed in %s: %v", e.CompanyID, e.Stage, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }
