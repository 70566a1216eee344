package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/enrollhq/triage-engine/internal/domain"
)

// ProgrammeRepo implements triage.CapacityReader against PostgreSQL.
type ProgrammeRepo struct{ db *sql.DB }

// NewProgrammeRepo creates a Postgres-backed programme capacity reader.
func NewProgrammeRepo(db *sql.DB) *ProgrammeRepo { return &ProgrammeRepo{db: db} }

// Get returns one programme's capacity record, or nil when the programme is
// not capacity-tracked.
func (r *ProgrammeRepo) Get(ctx context.Context, orgID, code string) (*domain.Programme, error) {
	p := &domain.Programme{}
	err := r.db.QueryRowContext(ctx, `
		SELECT organization_id, code, name, capacity_total, capacity_remaining
		FROM triage_programmes
		WHERE organization_id = $1 AND code = $2
	`, orgID, code).Scan(&p.OrganizationID, &p.Code, &p.Name, &p.CapacityTotal, &p.CapacityRemaining)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get programme: %w", err)
	}
	return p, nil
}

// CapacityRatio returns remaining/total seats for the programme, or nil when
// the programme is not capacity-tracked. Never an error path for scoring:
// unknown programmes simply have no capacity signal.
func (r *ProgrammeRepo) CapacityRatio(ctx context.Context, orgID, programme string) (*float64, error) {
	p, err := r.Get(ctx, orgID, programme)
	if err != nil {
		return nil, fmt.Errorf("programme capacity: %w", err)
	}
	if p == nil {
		return nil, nil
	}
	ratio := p.CapacityRatio()
	return &ratio, nil
}
