package task

import "github.com/goliatone/go-errors"

// ErrValidation is a sentinel error used to mark parameter validation
// failures. Wrappers can compare errors with errors.Is(err, ErrValidation)
// to propagate validation intent through additional layers.
var ErrValidation = errors.New("validation error", errors.CategoryValidation).
	WithTextCode("VALIDATION_FAILED")

// ErrNotImplemented marks a task whose business logic was never provided.
// This is a programming-contract violation: it always propagates to the
// caller and is never converted into a failed result.
var ErrNotImplemented = errors.New("task business logic not implemented", errors.CategoryInternal).
	WithTextCode("TASK_NOT_IMPLEMENTED")

// ErrFrozen is returned by mutators once an execution has been finalized.
var ErrFrozen = errors.New("frozen after finalization", errors.CategoryConflict).
	WithTextCode("EXECUTION_FROZEN")

func transitionError(msg string, meta map[string]any) error {
	return errors.New(msg, errors.CategoryConflict).
		WithTextCode("INVALID_TRANSITION").
		WithMetadata(meta)
}
