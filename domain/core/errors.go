package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrSeriesNotFound = fmt.Errorf("%w: series", ErrNotFound)
	ErrRunNotFound    = fmt.Errorf("%w: run", ErrNotFound)

	// Configuration errors: malformed input rejected before grid construction
	ErrInvalidObservation      = errors.New("invalid observation")
	ErrOverlappingObservations = errors.New("overlapping observations")
	ErrOutsideSpan             = errors.New("observation outside requested span")
	ErrInvalidWeights          = errors.New("invalid day-of-week weights")
	ErrUnknownFrequency        = errors.New("unknown frequency")
	ErrSpanTooLong             = errors.New("grid span too long")

	// Query outcomes
	ErrInsufficientData = errors.New("insufficient data for calendarization")

	// Engine errors
	ErrNumericalFailure = errors.New("numerical failure in smoothing engine")
)

// NewNotFoundError builds a not-found error with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// NewObservationError reports a malformed observation at the given index
func NewObservationError(index int, reason string) error {
	return fmt.Errorf("%w #%d: %s", ErrInvalidObservation, index, reason)
}

// IsNotFoundError reports whether err is a not-found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConfigurationError reports whether err was caused by malformed input
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidObservation) ||
		errors.Is(err, ErrOverlappingObservations) ||
		errors.Is(err, ErrOutsideSpan) ||
		errors.Is(err, ErrInvalidWeights) ||
		errors.Is(err, ErrUnknownFrequency) ||
		errors.Is(err, ErrSpanTooLong)
}
