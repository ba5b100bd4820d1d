package model

import "errors"

// ErrInvalidTransition is returned when a state machine rule would be
// violated: advancing a line item of a delivered order, leaving a
// terminal state, or forcing a state that does not exist for the
// order's channel.  It is never coerced into a different transition.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrTableNotFree is returned when a table cannot be occupied or
// reserved because it is not FREE.
var ErrTableNotFree = errors.New("table not free")

// ErrConcurrencyConflict is returned when a manual transition carries an
// expected version that no longer matches the stored order.  Callers
// should reload and retry.
var ErrConcurrencyConflict = errors.New("concurrency conflict")

// ErrValidation marks malformed input such as an empty order or an
// unknown channel.
var ErrValidation = errors.New("validation failed")
