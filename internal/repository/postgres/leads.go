package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/enrollhq/triage-engine/internal/domain"
	"github.com/enrollhq/triage-engine/internal/service/triage"
)

// LeadRepo implements triage.LeadRepository against PostgreSQL.
type LeadRepo struct{ db *sql.DB }

// NewLeadRepo creates a Postgres-backed lead repository.
func NewLeadRepo(db *sql.DB) *LeadRepo { return &LeadRepo{db: db} }

const leadColumns = `
	id, organization_id, first_name, last_name, email, phone, consent_given,
	source, programme, value_tier, stage, touchpoint_count, last_engaged_at,
	deadline_at, doc_completeness, id_completeness, attributes,
	score, probability, confidence, score_band, scored_at,
	stage_entered_at, created_at, updated_at`

func (r *LeadRepo) Get(ctx context.Context, orgID, id string) (*domain.Lead, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+leadColumns+`
		FROM triage_leads
		WHERE id = $1 AND organization_id = $2
	`, id, orgID)

	lead, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, triage.ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return lead, nil
}

func (r *LeadRepo) Batch(ctx context.Context, orgID string, ids []string) ([]domain.Lead, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+leadColumns+`
		FROM triage_leads
		WHERE organization_id = $1 AND id = ANY($2)
	`, orgID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("batch leads: %w", err)
	}
	defer rows.Close()

	var out []domain.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, *lead)
	}
	return out, rows.Err()
}

func (r *LeadRepo) ListActionable(ctx context.Context, orgID string, limit int) ([]domain.Lead, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+leadColumns+`
		FROM triage_leads
		WHERE organization_id = $1 AND stage NOT IN ('enrolled', 'withdrawn')
		ORDER BY created_at ASC
		LIMIT $2
	`, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("list actionable leads: %w", err)
	}
	defer rows.Close()

	var out []domain.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, *lead)
	}
	return out, rows.Err()
}

func (r *LeadRepo) UpdateScore(ctx context.Context, orgID, id string, result domain.ScoreResult, scoredAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE triage_leads
		SET score = $3, probability = $4, confidence = $5, score_band = $6,
		    scored_at = $7, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2
	`, id, orgID, result.Score, result.Probability, result.Confidence, string(result.Band), scoredAt)
	if err != nil {
		return fmt.Errorf("update lead score: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return triage.ErrLeadNotFound
	}
	return nil
}

// ListOrganizations returns the distinct organizations with leads on file.
// The batch workers iterate this set.
func (r *LeadRepo) ListOrganizations(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT organization_id FROM triage_leads ORDER BY organization_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan organization id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// rowScanner lets scanLead work for both QueryRow and Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLead(row rowScanner) (*domain.Lead, error) {
	l := &domain.Lead{}
	var attributes []byte
	err := row.Scan(
		&l.ID, &l.OrganizationID, &l.FirstName, &l.LastName, &l.Email, &l.Phone,
		&l.ConsentGiven, &l.Source, &l.Programme, &l.ValueTier, &l.Stage,
		&l.TouchpointCount, &l.LastEngagedAt, &l.DeadlineAt,
		&l.DocCompleteness, &l.IDCompleteness, &attributes,
		&l.Score, &l.Probability, &l.Confidence, &l.ScoreBand, &l.ScoredAt,
		&l.StageEnteredAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(attributes) > 0 {
		if err := json.Unmarshal(attributes, &l.Attributes); err != nil {
			return nil, fmt.Errorf("decode lead attributes: %w", err)
		}
	}
	return l, nil
}
