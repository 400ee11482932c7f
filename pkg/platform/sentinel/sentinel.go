package sentinel

import "errors"

// Sentinel errors for storage facts. Ledger stores return these (optionally
// wrapped) and the lifecycle engine translates them into coded domain errors.
//
//   - ErrNotFound: no row for the requested key
//   - ErrConflict: a uniqueness or 1:1 pairing constraint would be violated
//   - ErrBrokenReference: a referenced row (campaign, receiver, allocation) is missing
//   - ErrUnavailable: backend unreachable or the unit of work timed out
//   - ErrOutOfRange: a numeric value does not fit its column
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrBrokenReference = errors.New("broken reference")
	ErrUnavailable     = errors.New("unavailable")
	ErrOutOfRange      = errors.New("out of range")
)
