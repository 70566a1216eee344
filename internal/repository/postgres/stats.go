package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// StatsRepo serves the aggregate counts behind the triage dashboard.
type StatsRepo struct{ db *sql.DB }

// NewStatsRepo creates a Postgres-backed dashboard stats reader.
func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

// BandCounts returns the number of scored leads per score band. Leads
// that were never scored are reported under "unscored".
func (r *StatsRepo) BandCounts(ctx context.Context, orgID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(score_band, 'unscored'), COUNT(*)
		FROM triage_leads
		WHERE organization_id = $1
		  AND stage NOT IN ('enrolled', 'withdrawn')
		GROUP BY COALESCE(score_band, 'unscored')
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("band counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var band string
		var n int
		if err := rows.Scan(&band, &n); err != nil {
			return nil, fmt.Errorf("scan band count: %w", err)
		}
		counts[band] = n
	}
	return counts, rows.Err()
}

// QueueDepth counts unexpired action queue items for the organization.
func (r *StatsRepo) QueueDepth(ctx context.Context, orgID string, now time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM triage_action_queue
		WHERE organization_id = $1 AND expires_at > $2
	`, orgID, now).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return n, nil
}

// PendingOutcomeCount counts executions still awaiting outcome measurement.
func (r *StatsRepo) PendingOutcomeCount(ctx context.Context, orgID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM triage_action_executions
		WHERE organization_id = $1 AND status = 'pending_outcome'
	`, orgID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("pending outcome count: %w", err)
	}
	return n, nil
}
