package model

import "fmt"

// Error taxonomy shared by the engine and the services around it. Every
// failure surfaced to a caller is one of these kinds; callers match with
// errors.As.

// ValidationError marks malformed or out-of-range input or configuration.
// Never retried, surfaced immediately.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// DataUnavailableError marks a degraded collaborator (sensor, forecast).
// Recovered locally via fallback defaults; carried as a warning annotation
// on the resulting decision, never a computation abort.
type DataUnavailableError struct {
	Source string
	Reason string
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("data unavailable (%s): %s", e.Source, e.Reason)
}

// SequenceError marks a water-balance advance whose date is not exactly one
// day after the committed state. Fatal for the invocation, prior state
// untouched.
type SequenceError struct {
	FieldID string
	Have    string // committed state date
	Want    string // requested date
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("sequence: field %s has state for %s, cannot advance to %s", e.FieldID, e.Have, e.Want)
}

// ConcurrencyError marks a decision computation rejected because another is
// in flight for the same field. Retry is left to the caller.
type ConcurrencyError struct {
	FieldID string
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("busy: decision already in progress for field %s", e.FieldID)
}

// ComputationError marks a numeric breach inside the water balance: a
// non-finite intermediate aborts the advance and leaves prior state
// untouched.
type ComputationError struct {
	Reason string
}

func (e *ComputationError) Error() string { return "computation: " + e.Reason }
