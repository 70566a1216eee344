// Package weights implements the scoring weight store.
//
// The service layer owns the one-active-set-per-organization invariant at
// the API level, audits every activation (and every skipped optimizer
// update), and caches the active set with explicit invalidation. It depends
// on the repository interface defined in this package and should never
// import from api/.
//
// The true serialization point for concurrent activations is the storage
// layer (a partial unique index on organization_id WHERE is_active); this
// package retries once on that conflict and otherwise surfaces
// ErrActivationFailed.
//
// Repository implementations live in repository/postgres/.
package weights
