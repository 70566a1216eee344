package triage

import (
	"context"
	"time"

	"github.com/enrollhq/triage-engine/internal/domain"
)

// LeadRepository defines read access to lead records plus the single
// write-back this engine performs on them (the triage score fields).
// Implementations must be safe for concurrent use.
type LeadRepository interface {
	// Get returns a single lead. Returns ErrLeadNotFound if it doesn't exist.
	Get(ctx context.Context, orgID, id string) (*domain.Lead, error)

	// Batch returns the leads matching the given ids. Missing ids are
	// simply absent from the result, not an error.
	Batch(ctx context.Context, orgID string, ids []string) ([]domain.Lead, error)

	// ListActionable returns the organization's leads eligible for the
	// action queue: not enrolled, not withdrawn, ordered by created_at.
	ListActionable(ctx context.Context, orgID string, limit int) ([]domain.Lead, error)

	// UpdateScore writes the triage result back onto the lead record.
	UpdateScore(ctx context.Context, orgID, id string, result domain.ScoreResult, scoredAt time.Time) error
}

// CapacityReader reports remaining intake capacity for a programme.
// A nil ratio means no capacity data is tracked for that programme.
type CapacityReader interface {
	CapacityRatio(ctx context.Context, orgID, programme string) (*float64, error)
}
