package dispatch

import "errors"

// Error taxonomy for the dispatch core. InvalidTransition and the geo
// package's ErrInvalidCoordinate are caller errors and are never retried.
// ErrUnitNoLongerAvailable is expected under concurrency and triggers a
// bounded retry against the next-best candidate. ErrNoEligibleUnit is the
// valid "not found" outcome, not an exceptional condition
var (
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrUnitNoLongerAvailable = errors.New("unit no longer available")
	ErrNoEligibleUnit        = errors.New("no eligible unit")
	ErrConstraintViolation   = errors.New("constraint violation")
)
