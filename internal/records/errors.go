package records

import "errors"

// ErrActiveRun is returned by Claim when another run for the same session
// identifier is currently in progress.
var ErrActiveRun = errors.New("session already has an active run")

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("processing record not found")

// ErrStaleTransition is returned when a compare-and-swap status transition
// finds the record no longer in the expected state.
var ErrStaleTransition = errors.New("record status changed concurrently")
