package model

import (
	"errors"
	"fmt"
)

// Sentinel model errors, matching the taxonomy in SPEC_FULL.md (model
// errors: fatal before simulation starts, never raised by the engine).
var (
	ErrDuplicateID    = errors.New("model: duplicate id")
	ErrUnknownID      = errors.New("model: reference to unknown id")
	ErrCycle          = errors.New("model: subtask graph contains a cycle")
	ErrIndexGap       = errors.New("model: segment indexes must form 1..N")
	ErrResourceCore   = errors.New("model: segment's required resources do not share one bound core")
	ErrTimingField    = errors.New("model: timing-field contradiction")
	ErrUnknownEnum    = errors.New("model: unknown enum value")
	ErrInvalidNumeric = errors.New("model: invalid numeric bound")
)

// ValidationError wraps a model error with the path at which it occurred,
// modeled on the teacher's CrawlError struct: a typed error carrying
// structured context, implementing Unwrap so callers can match on the
// sentinel with errors.Is.
type ValidationError struct {
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func fail(path string, err error) error {
	return &ValidationError{Path: path, Err: err}
}

func failf(path string, err error, format string, args ...any) error {
	return &ValidationError{Path: path, Err: fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))}
}
