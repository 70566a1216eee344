package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/enrollhq/triage-engine/internal/domain"
)

// QueueRepo implements queue.Repository against PostgreSQL.
type QueueRepo struct{ db *sql.DB }

// NewQueueRepo creates a Postgres-backed action queue repository.
func NewQueueRepo(db *sql.DB) *QueueRepo { return &QueueRepo{db: db} }

// ErrQueueItemNotFound is returned by Get for absent or already-swept items.
var ErrQueueItemNotFound = fmt.Errorf("action queue item not found")

func (r *QueueRepo) ReplaceSnapshot(ctx context.Context, orgID string, items []domain.ActionQueueItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM triage_action_queue WHERE organization_id = $1
	`, orgID); err != nil {
		return fmt.Errorf("clear queue snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO triage_action_queue
			(id, organization_id, user_id, lead_id, action_type, reason,
			 priority, expected_gain, artifacts, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`)
	if err != nil {
		return fmt.Errorf("prepare queue insert: %w", err)
	}
	defer stmt.Close()

	for i := range items {
		item := &items[i]
		artifacts, err := json.Marshal(item.Artifacts)
		if err != nil {
			return fmt.Errorf("encode queue artifacts: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			item.ID, item.OrganizationID, item.UserID, item.LeadID,
			string(item.ActionType), item.Reason, item.Priority,
			item.ExpectedGain, artifacts, item.ExpiresAt, item.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert queue item: %w", err)
		}
	}

	return tx.Commit()
}

func (r *QueueRepo) ListActive(ctx context.Context, orgID string, userID *string, now time.Time, limit int) ([]domain.ActionQueueItem, error) {
	q := `
		SELECT id, organization_id, user_id, lead_id, action_type, reason,
		       priority, expected_gain, artifacts, expires_at, created_at
		FROM triage_action_queue
		WHERE organization_id = $1 AND expires_at > $2`
	args := []interface{}{orgID, now}
	if userID != nil {
		// Assigned to this user, or unassigned and available for pickup.
		q += ` AND (user_id = $3 OR user_id IS NULL)`
		args = append(args, *userID)
	}
	q += fmt.Sprintf(` ORDER BY priority DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var out []domain.ActionQueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

func (r *QueueRepo) Get(ctx context.Context, orgID, id string) (*domain.ActionQueueItem, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, user_id, lead_id, action_type, reason,
		       priority, expected_gain, artifacts, expires_at, created_at
		FROM triage_action_queue
		WHERE id = $1 AND organization_id = $2
	`, id, orgID)

	item, err := scanQueueItem(row)
	if err == sql.ErrNoRows {
		return nil, ErrQueueItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get queue item: %w", err)
	}
	return item, nil
}

func (r *QueueRepo) DeleteExpired(ctx context.Context, before time.Time, batchSize int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM triage_action_queue
		WHERE id IN (
			SELECT id FROM triage_action_queue
			WHERE expires_at <= $1
			LIMIT $2
		)
	`, before, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete expired queue items: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanQueueItem(row rowScanner) (*domain.ActionQueueItem, error) {
	item := &domain.ActionQueueItem{}
	var artifacts []byte
	err := row.Scan(
		&item.ID, &item.OrganizationID, &item.UserID, &item.LeadID,
		&item.ActionType, &item.Reason, &item.Priority, &item.ExpectedGain,
		&artifacts, &item.ExpiresAt, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(artifacts) > 0 {
		if err := json.Unmarshal(artifacts, &item.Artifacts); err != nil {
			return nil, fmt.Errorf("decode queue artifacts: %w", err)
		}
	}
	return item, nil
}
