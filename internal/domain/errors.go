package domain

import (
	"errors"
	"fmt"
)

// Core error taxonomy. Callers inspect with errors.Is / errors.As.
var (
	// ErrValidation marks malformed or unsafe input. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrRetrievalUnavailable means the vector index or embedding model could not be reached.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrGenerationUnavailable means the generation model could not be reached or answered garbage.
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// ErrDuplicateSubmission is informational: Submit returned an existing job.
	ErrDuplicateSubmission = errors.New("duplicate submission")

	// ErrJobFailed is the terminal state after retries are exhausted.
	ErrJobFailed = errors.New("job failed")

	// ErrPermanent marks a job error that must not be retried.
	ErrPermanent = errors.New("permanent failure")

	ErrNotFound = errors.New("not found")

	// ErrConflict means the resource is in a state that forbids the operation.
	ErrConflict = errors.New("conflict")
)

// ValidationError carries the offending field. It matches ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Permanent wraps err so the job orchestrator does not retry it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsRetryable reports whether a background job should be retried after err.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrValidation) && !errors.Is(err, ErrPermanent)
}
