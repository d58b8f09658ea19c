package domain

import "errors"

// Validation errors.
var (
	ErrInvalidReference = errors.New("invalid reference")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrInvalidDateRange = errors.New("invalid date range")
	ErrInvalidListing   = errors.New("invalid listing")
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrListingNotFound = errors.New("listing not found")
)

// Conflict errors.
var (
	ErrInsufficientCapacity  = errors.New("insufficient capacity")
	ErrAlreadyCancelled      = errors.New("booking already cancelled")
	ErrBookingNotCancellable = errors.New("booking cannot be cancelled")
	ErrBookingNotPending     = errors.New("booking is not pending")
	ErrListingExists         = errors.New("listing already exists")
)

// ErrTransientStore marks lock timeouts, deadlocks and dropped connections. Callers may retry.
var ErrTransientStore = errors.New("transient store error")

// ErrCommitOutcomeUnknown means COMMIT failed without the server confirming a
// rollback. The transaction may have applied, so it must not be replayed.
var ErrCommitOutcomeUnknown = errors.New("commit outcome unknown")
