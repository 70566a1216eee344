package weights

import "errors"

// Sentinel errors for the weights service layer.
var (
	// ErrNoActiveSet means the organization has no active weight set.
	// Callers of the service never see it: GetActive substitutes the
	// built-in defaults. Repositories return it.
	ErrNoActiveSet = errors.New("no active weight set for organization")

	// ErrActivationConflict is returned by repositories when a concurrent
	// activation won the storage-level uniqueness race.
	ErrActivationConflict = errors.New("concurrent weight activation conflict")

	// ErrActivationFailed means activation still failed after the retry.
	// The optimizer skips its cycle and tries again next scheduled run.
	ErrActivationFailed = errors.New("weight activation failed")
)
