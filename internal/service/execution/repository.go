package execution

import (
	"context"
	"time"

	"github.com/enrollhq/triage-engine/internal/domain"
)

// Outcome carries the measurement written exactly once onto an execution.
// Nil fields stay null (e.g. conversion delta for a purged lead).
type Outcome struct {
	LeadMoved           *bool
	TimeToNextStageDays *float64
	ConversionDelta     *float64
	ResponseReceived    *bool
	MeasuredAt          time.Time
}

// Repository defines the data access contract for action executions.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Insert appends a new execution in pending_outcome status.
	Insert(ctx context.Context, e *domain.ActionExecution) error

	// Get returns a single execution. Returns ErrNotFound if absent.
	Get(ctx context.Context, orgID, id string) (*domain.ActionExecution, error)

	// MarkMeasured fills the outcome fields and flips status to measured.
	// Returns ErrAlreadyMeasured when the execution is not pending: the
	// transition is one-way and one-time.
	MarkMeasured(ctx context.Context, orgID, id string, o Outcome) error

	// ListPendingBefore returns pending executions whose observation
	// window elapsed (executed before the cutoff), oldest first.
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.ActionExecution, error)

	// ListTrainable returns measured, non-simulated executions for the
	// organization measured at or after since. Optimizer training input.
	ListTrainable(ctx context.Context, orgID string, since time.Time) ([]domain.ActionExecution, error)
}

// QueueItemReader resolves a queue item at execution time. The item may
// already have been swept; that is not an error for the tracker.
type QueueItemReader interface {
	Get(ctx context.Context, orgID, id string) (*domain.ActionQueueItem, error)
}
