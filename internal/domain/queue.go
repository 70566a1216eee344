package domain

import "time"

// ActionType enumerates the recommended next actions the queue can surface.
type ActionType string

const (
	ActionEmail   ActionType = "email"
	ActionCall    ActionType = "call"
	ActionFlag    ActionType = "flag"
	ActionUnblock ActionType = "unblock"
)

// ActionQueueItem is one recommended next action for a lead. Items are
// created in batches by the queue builder, read by dashboards/APIs, and
// deleted by the TTL sweep once expires_at passes. Never updated in place:
// a builder re-run replaces the org's snapshot wholesale.
type ActionQueueItem struct {
	ID             string         `json:"id" db:"id"`
	OrganizationID string         `json:"organization_id" db:"organization_id"`
	UserID         *string        `json:"user_id" db:"user_id"` // nil = unassigned, awaiting routing
	LeadID         string         `json:"lead_id" db:"lead_id"`
	ActionType     ActionType     `json:"action_type" db:"action_type"`
	Reason         string         `json:"reason" db:"reason"`
	Priority       float64        `json:"priority" db:"priority"`
	ExpectedGain   float64        `json:"expected_gain" db:"expected_gain"` // 0-1
	Artifacts      map[string]any `json:"artifacts" db:"artifacts"`
	ExpiresAt      time.Time      `json:"expires_at" db:"expires_at"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// Expired reports whether the item's TTL has passed at the given instant.
func (i ActionQueueItem) Expired(now time.Time) bool {
	return !i.ExpiresAt.After(now)
}

// ExecutionResult records what happened when an action was taken.
type ExecutionResult string

const (
	ResultSent      ExecutionResult = "sent"
	ResultFailed    ExecutionResult = "failed"
	ResultSkipped   ExecutionResult = "skipped"
	ResultSimulated ExecutionResult = "simulated"
)

// ExecutionStatus is the two-state outcome lifecycle: an execution is
// pending_outcome until its observation window elapses and the outcome is
// measured, after which it is immutable.
type ExecutionStatus string

const (
	ExecutionPendingOutcome ExecutionStatus = "pending_outcome"
	ExecutionMeasured       ExecutionStatus = "measured"
)

// ActionExecution is the immutable record of an executed (or simulated)
// action. Created at execution time with a snapshot of the lead's feature
// vector and stage; updated exactly once when the outcome is measured.
type ActionExecution struct {
	ID             string          `json:"id" db:"id"`
	OrganizationID string          `json:"organization_id" db:"organization_id"`
	QueueItemID    *string         `json:"queue_item_id" db:"queue_item_id"` // nil if the item already expired
	LeadID         string          `json:"lead_id" db:"lead_id"`
	ActionType     ActionType      `json:"action_type" db:"action_type"`
	Result         ExecutionResult `json:"result" db:"result"`
	ExecutedAt     time.Time       `json:"executed_at" db:"executed_at"`
	ExecutedBy     string          `json:"executed_by" db:"executed_by"`

	// Prediction-time snapshot, joined back by the optimizer.
	StageAtExecution       LeadStage          `json:"stage_at_execution" db:"stage_at_execution"`
	ProbabilityAtExecution float64            `json:"probability_at_execution" db:"probability_at_execution"`
	Features               map[string]float64 `json:"features" db:"features"`

	// Outcome fields, filled exactly once at measurement time.
	Status              ExecutionStatus `json:"status" db:"status"`
	LeadMoved           *bool           `json:"lead_moved" db:"lead_moved"`
	TimeToNextStageDays *float64        `json:"time_to_next_stage_days" db:"time_to_next_stage_days"`
	ConversionDelta     *float64        `json:"conversion_delta" db:"conversion_delta"`
	ResponseReceived    *bool           `json:"response_received" db:"response_received"`
	OutcomeMeasuredAt   *time.Time      `json:"outcome_measured_at" db:"outcome_measured_at"`
}

// Trainable reports whether the execution can feed optimizer training:
// measured, real (not simulated), and carrying a feature snapshot.
func (e ActionExecution) Trainable() bool {
	return e.Status == ExecutionMeasured &&
		e.Result != ResultSimulated &&
		e.LeadMoved != nil &&
		len(e.Features) > 0
}
