package triage

import "errors"

// Sentinel errors for the triage service layer.
var (
	// ErrLeadNotFound means the lead does not exist (or was purged).
	// Batch callers skip the lead and continue; they never abort the run.
	ErrLeadNotFound = errors.New("lead not found")
)
