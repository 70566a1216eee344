package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/enrollhq/triage-engine/internal/domain"
	"github.com/enrollhq/triage-engine/internal/service/execution"
)

// ExecutionRepo implements execution.Repository against PostgreSQL.
type ExecutionRepo struct{ db *sql.DB }

// NewExecutionRepo creates a Postgres-backed execution repository.
func NewExecutionRepo(db *sql.DB) *ExecutionRepo { return &ExecutionRepo{db: db} }

const executionColumns = `
	id, organization_id, queue_item_id, lead_id, action_type, result,
	executed_at, COALESCE(executed_by,''), stage_at_execution,
	probability_at_execution, features, status, lead_moved,
	time_to_next_stage_days, conversion_delta, response_received,
	outcome_measured_at`

func (r *ExecutionRepo) Insert(ctx context.Context, e *domain.ActionExecution) error {
	features, err := json.Marshal(e.Features)
	if err != nil {
		return fmt.Errorf("encode execution features: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO triage_action_executions
			(id, organization_id, queue_item_id, lead_id, action_type, result,
			 executed_at, executed_by, stage_at_execution,
			 probability_at_execution, features, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, e.ID, e.OrganizationID, e.QueueItemID, e.LeadID, string(e.ActionType),
		string(e.Result), e.ExecutedAt, e.ExecutedBy, string(e.StageAtExecution),
		e.ProbabilityAtExecution, features, string(e.Status)); err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

func (r *ExecutionRepo) Get(ctx context.Context, orgID, id string) (*domain.ActionExecution, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+executionColumns+`
		FROM triage_action_executions
		WHERE id = $1 AND organization_id = $2
	`, id, orgID)

	e, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, execution.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get execution: %w", err)
	}
	return e, nil
}

func (r *ExecutionRepo) MarkMeasured(ctx context.Context, orgID, id string, o execution.Outcome) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE triage_action_executions
		SET status = 'measured', lead_moved = $3, time_to_next_stage_days = $4,
		    conversion_delta = $5, response_received = $6, outcome_measured_at = $7
		WHERE id = $1 AND organization_id = $2 AND status = 'pending_outcome'
	`, id, orgID, o.LeadMoved, o.TimeToNextStageDays, o.ConversionDelta,
		o.ResponseReceived, o.MeasuredAt)
	if err != nil {
		return fmt.Errorf("mark execution measured: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either absent or already measured: disambiguate for the caller.
		if _, err := r.Get(ctx, orgID, id); err != nil {
			return err
		}
		return execution.ErrAlreadyMeasured
	}
	return nil
}

func (r *ExecutionRepo) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.ActionExecution, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+executionColumns+`
		FROM triage_action_executions
		WHERE status = 'pending_outcome' AND executed_at <= $1
		ORDER BY executed_at ASC
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending executions: %w", err)
	}
	return collectExecutions(rows)
}

func (r *ExecutionRepo) ListTrainable(ctx context.Context, orgID string, since time.Time) ([]domain.ActionExecution, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+executionColumns+`
		FROM triage_action_executions
		WHERE organization_id = $1 AND status = 'measured'
		  AND result <> 'simulated' AND lead_moved IS NOT NULL
		  AND outcome_measured_at >= $2
		ORDER BY outcome_measured_at ASC
	`, orgID, since)
	if err != nil {
		return nil, fmt.Errorf("list trainable executions: %w", err)
	}
	return collectExecutions(rows)
}

func collectExecutions(rows *sql.Rows) ([]domain.ActionExecution, error) {
	defer rows.Close()
	var out []domain.ActionExecution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanExecution(row rowScanner) (*domain.ActionExecution, error) {
	e := &domain.ActionExecution{}
	var features []byte
	err := row.Scan(
		&e.ID, &e.OrganizationID, &e.QueueItemID, &e.LeadID, &e.ActionType,
		&e.Result, &e.ExecutedAt, &e.ExecutedBy, &e.StageAtExecution,
		&e.ProbabilityAtExecution, &features, &e.Status, &e.LeadMoved,
		&e.TimeToNextStageDays, &e.ConversionDelta, &e.ResponseReceived,
		&e.OutcomeMeasuredAt,
	)
	if err != nil {
		return nil, err
	}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &e.Features); err != nil {
			return nil, fmt.Errorf("decode execution features: %w", err)
		}
	}
	return e, nil
}
