// Package queue materializes the priority-ordered action queue.
//
// The builder runs as a periodic batch per organization. Each run is an
// idempotent snapshot: it scores the organization's actionable leads,
// derives one recommended action per lead, and replaces the previous
// snapshot wholesale. Items share a single expiry (end of the processing
// window); expired items are filtered at read time and removed by the sweep.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/enrollhq/triage-engine/internal/domain"
	"github.com/enrollhq/triage-engine/internal/scoring"
	"github.com/enrollhq/triage-engine/internal/service/triage"
)

// Repository defines the data access contract for queue snapshots.
// Implementations must be safe for concurrent use.
type Repository interface {
	// ReplaceSnapshot atomically deletes the organization's current items
	// and inserts the new batch in one transaction.
	ReplaceSnapshot(ctx context.Context, orgID string, items []domain.ActionQueueItem) error

	// ListActive returns unexpired items ordered by priority descending.
	// The expiry filter is applied in the query, independent of the sweep.
	ListActive(ctx context.Context, orgID string, userID *string, now time.Time, limit int) ([]domain.ActionQueueItem, error)

	// Get returns one item regardless of expiry (execution-time resolution).
	Get(ctx context.Context, orgID, id string) (*domain.ActionQueueItem, error)

	// DeleteExpired removes items whose expiry passed, up to batchSize
	// rows, returning the number deleted.
	DeleteExpired(ctx context.Context, before time.Time, batchSize int) (int64, error)
}

// Config holds the tunable priority constants. The relative weighting of
// urgency vs impact vs probability is deliberately tunable, not fixed.
type Config struct {
	MaxLeadsPerRun    int     // cap on leads scored per builder run
	DeadlineHorizon   float64 // days before deadline where urgency starts climbing
	ContactDecayDays  float64 // e-folding time for urgency decay since last contact
	ContactDecayFloor float64 // minimum urgency retained by a cold lead
}

// DefaultConfig returns the standard builder tuning.
func DefaultConfig() Config {
	return Config{
		MaxLeadsPerRun:    1000,
		DeadlineHorizon:   30,
		ContactDecayDays:  30,
		ContactDecayFloor: 0.25,
	}
}

// impactWeight reflects the lead's declared value tier.
var impactWeight = map[domain.ValueTier]float64{
	domain.TierStandard:  1.0,
	domain.TierPriority:  1.25,
	domain.TierStrategic: 1.5,
}

// Builder computes action queue snapshots.
type Builder struct {
	leads  triage.LeadRepository
	triage *triage.Service
	repo   Repository
	cfg    Config
}

// NewBuilder creates a queue builder.
func NewBuilder(leads triage.LeadRepository, trg *triage.Service, repo Repository, cfg Config) *Builder {
	if cfg.MaxLeadsPerRun <= 0 {
		cfg = DefaultConfig()
	}
	return &Builder{leads: leads, triage: trg, repo: repo, cfg: cfg}
}

// BuildQueue scores the organization's actionable leads and replaces its
// queue snapshot. All items carry the same expires_at: the end of the
// current processing window. Unresolvable leads are skipped with a warning;
// they never abort the batch.
func (b *Builder) BuildQueue(ctx context.Context, orgID string, asOf time.Time) ([]domain.ActionQueueItem, error) {
	leads, err := b.leads.ListActionable(ctx, orgID, b.cfg.MaxLeadsPerRun)
	if err != nil {
		return nil, fmt.Errorf("list actionable leads: %w", err)
	}

	expiresAt := endOfWindow(asOf)
	items := make([]domain.ActionQueueItem, 0, len(leads))
	skipped := 0

	for i := range leads {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lead := &leads[i]

		_, result, err := b.triage.Evaluate(ctx, lead, asOf)
		if err != nil {
			if errors.Is(err, triage.ErrLeadNotFound) {
				skipped++
				log.Printf("[QueueBuilder] lead %s vanished mid-run, skipping", lead.ID)
				continue
			}
			skipped++
			log.Printf("[QueueBuilder] scoring failed for lead %s, skipping: %v", lead.ID, err)
			continue
		}

		item := b.buildItem(lead, result, asOf, expiresAt)
		items = append(items, item)
	}

	sortItems(items, leads)

	if err := b.repo.ReplaceSnapshot(ctx, orgID, items); err != nil {
		return nil, fmt.Errorf("replace queue snapshot: %w", err)
	}
	log.Printf("[QueueBuilder] org %s: %d items built, %d leads skipped, expires %s",
		orgID, len(items), skipped, expiresAt.Format(time.RFC3339))
	return items, nil
}

// buildItem derives one recommended action from a scored lead.
func (b *Builder) buildItem(lead *domain.Lead, result domain.ScoreResult, asOf, expiresAt time.Time) domain.ActionQueueItem {
	urgency := b.urgency(lead, asOf)
	impact := impactWeight[lead.ValueTier]
	if impact == 0 {
		impact = 1.0
	}

	p := result.Probability
	expectedGain := 4 * p * (1 - p) // peaks where an action can still change the outcome

	actionType, reason := chooseAction(lead, result)

	return domain.ActionQueueItem{
		ID:             uuid.New().String(),
		OrganizationID: lead.OrganizationID,
		LeadID:         lead.ID,
		ActionType:     actionType,
		Reason:         reason,
		Priority:       p * urgency * impact,
		ExpectedGain:   expectedGain,
		Artifacts: map[string]any{
			"suggested_template": templateFor(actionType, result.Band),
			"score_band":         string(result.Band),
			"reasons":            result.Reasons,
			"blocker_count":      len(result.Blockers),
		},
		ExpiresAt: expiresAt,
		CreatedAt: asOf,
	}
}

// urgency climbs as a deadline approaches and decays as time since last
// contact grows.
func (b *Builder) urgency(lead *domain.Lead, asOf time.Time) float64 {
	boost := 1.0
	if lead.DeadlineAt != nil {
		daysLeft := lead.DeadlineAt.Sub(asOf).Hours() / 24
		if daysLeft < 0 {
			daysLeft = 0
		}
		if daysLeft < b.cfg.DeadlineHorizon {
			boost = 1 + (b.cfg.DeadlineHorizon-daysLeft)/b.cfg.DeadlineHorizon
		}
	}

	decay := b.cfg.ContactDecayFloor
	if lead.LastEngagedAt != nil {
		days := asOf.Sub(*lead.LastEngagedAt).Hours() / 24
		if days < 0 {
			days = 0
		}
		decay = b.cfg.ContactDecayFloor + (1-b.cfg.ContactDecayFloor)*math.Exp(-days/b.cfg.ContactDecayDays)
	}

	return boost * decay
}

// chooseAction maps the scoring outcome to a recommended action type.
func chooseAction(lead *domain.Lead, result domain.ScoreResult) (domain.ActionType, string) {
	if top := scoring.TopBlocker(result.Blockers); top != nil {
		switch top.Severity {
		case domain.SeverityCritical:
			return domain.ActionFlag, top.Description
		case domain.SeverityHigh:
			return domain.ActionUnblock, top.Description
		}
	}
	if result.Band == domain.BandHot && lead.Phone != nil && *lead.Phone != "" {
		return domain.ActionCall, "hot lead with a reachable phone number"
	}
	if result.Band == domain.BandCold {
		return domain.ActionFlag, "cold lead, review before further outreach"
	}
	reason := "scheduled nurture touch"
	if len(result.Reasons) > 0 {
		reason = result.Reasons[0]
	}
	return domain.ActionEmail, reason
}

// templateFor picks the suggested message template key.
func templateFor(action domain.ActionType, band domain.ScoreBand) string {
	switch action {
	case domain.ActionCall:
		return "call_script_" + string(band)
	case domain.ActionUnblock:
		return "data_request"
	case domain.ActionFlag:
		return "internal_review"
	default:
		return "nurture_" + string(band)
	}
}

// sortItems orders by priority desc, ties broken by expected_gain desc, then
// by lead creation time ascending so old leads surface before new ones
// (starvation avoidance), then by lead id for full determinism.
func sortItems(items []domain.ActionQueueItem, leads []domain.Lead) {
	createdAt := make(map[string]time.Time, len(leads))
	for i := range leads {
		createdAt[leads[i].ID] = leads[i].CreatedAt
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority > items[j].Priority
		}
		if items[i].ExpectedGain != items[j].ExpectedGain {
			return items[i].ExpectedGain > items[j].ExpectedGain
		}
		ci, cj := createdAt[items[i].LeadID], createdAt[items[j].LeadID]
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		return items[i].LeadID < items[j].LeadID
	})
}

// List returns the organization's live queue, TTL-filtered at read time and
// ordered by priority descending.
func (b *Builder) List(ctx context.Context, orgID string, userID *string, limit int) ([]domain.ActionQueueItem, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return b.repo.ListActive(ctx, orgID, userID, time.Now().UTC(), limit)
}

// SweepExpired removes expired items in bounded batches. Returns total rows
// deleted.
func (b *Builder) SweepExpired(ctx context.Context, now time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	var total int64
	for {
		n, err := b.repo.DeleteExpired(ctx, now, batchSize)
		total += n
		if err != nil {
			return total, err
		}
		if n < int64(batchSize) {
			return total, nil
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
}

// endOfWindow returns the shared expiry for a build run: end of the current
// UTC day.
func endOfWindow(asOf time.Time) time.Time {
	u := asOf.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 0, time.UTC)
}
