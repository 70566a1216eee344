package execution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/enrollhq/triage-engine/internal/domain"
	"github.com/enrollhq/triage-engine/internal/service/triage"
)

// Service implements the execution tracker. Safe for concurrent use.
type Service struct {
	repo   Repository
	leads  triage.LeadRepository
	triage *triage.Service
	queue  QueueItemReader // optional; nil tolerated for direct (queueless) executions
}

// NewService creates an execution tracker.
func NewService(repo Repository, leads triage.LeadRepository, trg *triage.Service, queue QueueItemReader) *Service {
	return &Service{repo: repo, leads: leads, triage: trg, queue: queue}
}

// RecordInput describes an action taken by a user or an automation.
type RecordInput struct {
	OrganizationID string
	QueueItemID    *string // nil when the action was taken outside the queue
	LeadID         string  // resolved from the queue item when empty
	ActionType     domain.ActionType
	Result         domain.ExecutionResult
	ExecutedBy     string
}

// RecordExecution writes the immutable phase-one record, snapshotting the
// lead's current stage, feature vector, and predicted probability so the
// optimizer can later join outcome back to prediction. A queue item that
// already expired and was swept is fine: the reference is simply dropped.
func (s *Service) RecordExecution(ctx context.Context, input RecordInput) (*domain.ActionExecution, error) {
	if input.OrganizationID == "" || input.Result == "" {
		return nil, fmt.Errorf("%w: organization and result are required", ErrInvalidInput)
	}

	queueItemID := input.QueueItemID
	leadID := input.LeadID
	actionType := input.ActionType

	if queueItemID != nil && s.queue != nil {
		item, err := s.queue.Get(ctx, input.OrganizationID, *queueItemID)
		if err != nil {
			// Expired and swept between read and execution. Keep the
			// execution, drop the dangling reference.
			log.Printf("[Execution] queue item %s gone, recording without reference: %v", *queueItemID, err)
			queueItemID = nil
		} else {
			if leadID == "" {
				leadID = item.LeadID
			}
			if actionType == "" {
				actionType = item.ActionType
			}
		}
	}
	if leadID == "" {
		return nil, fmt.Errorf("%w: lead id could not be resolved", ErrInvalidInput)
	}
	if actionType == "" {
		return nil, fmt.Errorf("%w: action type is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	e := &domain.ActionExecution{
		ID:             uuid.New().String(),
		OrganizationID: input.OrganizationID,
		QueueItemID:    queueItemID,
		LeadID:         leadID,
		ActionType:     actionType,
		Result:         input.Result,
		ExecutedAt:     now,
		ExecutedBy:     input.ExecutedBy,
		Status:         domain.ExecutionPendingOutcome,
	}

	lead, err := s.leads.Get(ctx, input.OrganizationID, leadID)
	switch {
	case errors.Is(err, triage.ErrLeadNotFound):
		return nil, triage.ErrLeadNotFound
	case err != nil:
		return nil, fmt.Errorf("load lead for execution: %w", err)
	default:
		e.StageAtExecution = lead.Stage
		fv, result, evalErr := s.triage.Evaluate(ctx, lead, now)
		if evalErr != nil {
			// Snapshot is best-effort; the execution record itself must
			// not fail because scoring did.
			log.Printf("[Execution] prediction snapshot failed for lead %s: %v", leadID, evalErr)
		} else {
			e.Features = fv.Values
			e.ProbabilityAtExecution = result.Probability
		}
	}

	if err := s.repo.Insert(ctx, e); err != nil {
		return nil, fmt.Errorf("insert execution: %w", err)
	}
	return e, nil
}

// MeasureOutcome performs the phase-two write: checks whether the lead
// advanced stage since execution and fills the outcome fields. Valid only
// from pending_outcome; measured is terminal. A purged lead still measures,
// with a null conversion delta.
func (s *Service) MeasureOutcome(ctx context.Context, orgID, executionID string, asOf time.Time) (*domain.ActionExecution, error) {
	e, err := s.repo.Get(ctx, orgID, executionID)
	if err != nil {
		return nil, err
	}
	if e.Status != domain.ExecutionPendingOutcome {
		return nil, ErrAlreadyMeasured
	}

	outcome := Outcome{MeasuredAt: asOf}

	lead, err := s.leads.Get(ctx, orgID, e.LeadID)
	switch {
	case errors.Is(err, triage.ErrLeadNotFound):
		// Lead purged since execution: measured, delta stays null.
		log.Printf("[Execution] lead %s purged before measurement of %s", e.LeadID, executionID)
	case err != nil:
		return nil, fmt.Errorf("load lead for measurement: %w", err)
	default:
		moved := lead.Stage.AdvancedFrom(e.StageAtExecution)
		outcome.LeadMoved = &moved

		if moved {
			days := lead.StageEnteredAt.Sub(e.ExecutedAt).Hours() / 24
			if days < 0 {
				days = 0
			}
			outcome.TimeToNextStageDays = &days
		}

		observed := 0.0
		if moved {
			observed = 1.0
		}
		delta := observed - e.ProbabilityAtExecution
		outcome.ConversionDelta = &delta

		responded := lead.LastEngagedAt != nil && lead.LastEngagedAt.After(e.ExecutedAt)
		outcome.ResponseReceived = &responded
	}

	if err := s.repo.MarkMeasured(ctx, orgID, executionID, outcome); err != nil {
		return nil, err
	}

	e.Status = domain.ExecutionMeasured
	e.LeadMoved = outcome.LeadMoved
	e.TimeToNextStageDays = outcome.TimeToNextStageDays
	e.ConversionDelta = outcome.ConversionDelta
	e.ResponseReceived = outcome.ResponseReceived
	e.OutcomeMeasuredAt = &outcome.MeasuredAt
	return e, nil
}

// ListPendingBefore exposes the repository listing for the outcome worker.
func (s *Service) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.ActionExecution, error) {
	if limit <= 0 {
		limit = 500
	}
	return s.repo.ListPendingBefore(ctx, cutoff, limit)
}
