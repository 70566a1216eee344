package execution

import "errors"

// Sentinel errors for the execution tracker.
var (
	ErrNotFound        = errors.New("execution not found")
	ErrAlreadyMeasured = errors.New("execution outcome already measured")
	ErrInvalidInput    = errors.New("invalid execution input")
)
