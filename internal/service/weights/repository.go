package weights

import (
	"context"

	"github.com/enrollhq/triage-engine/internal/domain"
)

// Repository defines the data access contract for weight sets and their
// audit trail. Implementations must be safe for concurrent use.
type Repository interface {
	// GetActive returns the organization's active weight set.
	// Returns ErrNoActiveSet when none exists.
	GetActive(ctx context.Context, orgID string) (*domain.ScoringWeights, error)

	// Activate atomically deactivates the previous active set, inserts the
	// new one, and inserts its audit entry, all in a single transaction.
	// Returns ErrActivationConflict when a concurrent activation hits the
	// storage-level uniqueness constraint.
	Activate(ctx context.Context, w *domain.ScoringWeights, entry *domain.WeightsAuditEntry) error

	// InsertAudit appends an audit entry without touching the active set
	// (skipped optimizer updates).
	InsertAudit(ctx context.Context, entry *domain.WeightsAuditEntry) error

	// History returns audit entries for the organization, newest first.
	History(ctx context.Context, orgID string, limit int) ([]domain.WeightsAuditEntry, error)
}
