package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/enrollhq/triage-engine/internal/domain"
	"github.com/enrollhq/triage-engine/internal/service/weights"
)

// WeightsRepo implements weights.Repository against PostgreSQL.
//
// The one-active-set-per-organization invariant is enforced by a partial
// unique index (see migrations); a concurrent activation that loses the race
// surfaces pq error 23505 and is mapped to weights.ErrActivationConflict.
type WeightsRepo struct{ db *sql.DB }

// NewWeightsRepo creates a Postgres-backed weights repository.
func NewWeightsRepo(db *sql.DB) *WeightsRepo { return &WeightsRepo{db: db} }

func (r *WeightsRepo) GetActive(ctx context.Context, orgID string) (*domain.ScoringWeights, error) {
	w := &domain.ScoringWeights{}
	var components []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, components, is_active, COALESCE(notes,''), created_at
		FROM triage_scoring_weights
		WHERE organization_id = $1 AND is_active = TRUE
	`, orgID).Scan(&w.ID, &w.OrganizationID, &components, &w.IsActive, &w.Notes, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, weights.ErrNoActiveSet
	}
	if err != nil {
		return nil, fmt.Errorf("get active weights: %w", err)
	}
	if err := json.Unmarshal(components, &w.Components); err != nil {
		return nil, fmt.Errorf("decode weight components: %w", err)
	}
	return w, nil
}

func (r *WeightsRepo) Activate(ctx context.Context, w *domain.ScoringWeights, entry *domain.WeightsAuditEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activation: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE triage_scoring_weights
		SET is_active = FALSE
		WHERE organization_id = $1 AND is_active = TRUE
	`, w.OrganizationID); err != nil {
		return fmt.Errorf("deactivate previous weights: %w", err)
	}

	components, err := json.Marshal(w.Components)
	if err != nil {
		return fmt.Errorf("encode weight components: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO triage_scoring_weights (id, organization_id, components, is_active, notes, created_at)
		VALUES ($1, $2, $3, TRUE, $4, $5)
	`, w.ID, w.OrganizationID, components, w.Notes, w.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return weights.ErrActivationConflict
		}
		return fmt.Errorf("insert weights: %w", err)
	}

	if err := insertAuditTx(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return weights.ErrActivationConflict
		}
		return fmt.Errorf("commit activation: %w", err)
	}
	return nil
}

func (r *WeightsRepo) InsertAudit(ctx context.Context, entry *domain.WeightsAuditEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit insert: %w", err)
	}
	defer tx.Rollback()
	if err := insertAuditTx(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func insertAuditTx(ctx context.Context, tx *sql.Tx, entry *domain.WeightsAuditEntry) error {
	components, err := json.Marshal(entry.Components)
	if err != nil {
		return fmt.Errorf("encode audit components: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO triage_weights_audit
			(id, organization_id, weights_id, components, change_reason,
			 sample_size, model_performance, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, entry.OrganizationID, entry.WeightsID, components, entry.ChangeReason,
		entry.SampleSize, entry.ModelPerformance, entry.CreatedBy, entry.CreatedAt); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *WeightsRepo) History(ctx context.Context, orgID string, limit int) ([]domain.WeightsAuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, weights_id, components, change_reason,
		       sample_size, model_performance, COALESCE(created_by,''), created_at
		FROM triage_weights_audit
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("weights history: %w", err)
	}
	defer rows.Close()

	var out []domain.WeightsAuditEntry
	for rows.Next() {
		var e domain.WeightsAuditEntry
		var components []byte
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.WeightsID, &components,
			&e.ChangeReason, &e.SampleSize, &e.ModelPerformance, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if len(components) > 0 {
			if err := json.Unmarshal(components, &e.Components); err != nil {
				return nil, fmt.Errorf("decode audit components: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
