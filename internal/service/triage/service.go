package triage

import (
	"context"
	"log"
	"time"

	"github.com/enrollhq/triage-engine/internal/domain"
	"github.com/enrollhq/triage-engine/internal/features"
	"github.com/enrollhq/triage-engine/internal/scoring"
	"github.com/enrollhq/triage-engine/internal/service/weights"
)

// Service runs scoring passes. It is stateless apart from its dependencies
// and safe for concurrent use.
type Service struct {
	leads      LeadRepository
	capacity   CapacityReader // optional; nil means capacity is never a blocker
	weights    *weights.Service
	blockerCfg scoring.BlockerConfig
	explainer  scoring.Explainer // optional enrichment capability
}

// NewService creates a triage service. capacity and explainer may be nil.
func NewService(leads LeadRepository, capacity CapacityReader, w *weights.Service) *Service {
	return &Service{
		leads:      leads,
		capacity:   capacity,
		weights:    w,
		blockerCfg: scoring.DefaultBlockerConfig(),
	}
}

// SetBlockerConfig overrides the default blocker thresholds.
func (s *Service) SetBlockerConfig(cfg scoring.BlockerConfig) { s.blockerCfg = cfg }

// SetExplainer installs the optional natural-language explainer. Only Batch
// enriches reasons with it; Evaluate stays cheap for the queue builder and
// execution snapshots.
func (s *Service) SetExplainer(exp scoring.Explainer) { s.explainer = exp }

// Evaluate extracts features and scores one lead against the organization's
// active weights, without persisting anything. The feature vector is
// returned alongside the result so callers (execution tracker, queue
// builder) can snapshot it.
func (s *Service) Evaluate(ctx context.Context, lead *domain.Lead, asOf time.Time) (domain.FeatureVector, domain.ScoreResult, error) {
	fctx := features.Context{}
	if s.capacity != nil && lead.Programme != nil && *lead.Programme != "" {
		ratio, err := s.capacity.CapacityRatio(ctx, lead.OrganizationID, *lead.Programme)
		if err != nil {
			// Capacity is advisory: score without it rather than fail.
			log.Printf("[Triage] capacity lookup failed for org %s programme %s: %v", lead.OrganizationID, *lead.Programme, err)
		} else {
			fctx.CapacityRatio = ratio
		}
	}

	fv := features.Extract(lead, fctx, asOf)

	w, err := s.weights.GetActive(ctx, lead.OrganizationID)
	if err != nil {
		return fv, domain.ScoreResult{}, err
	}

	result := scoring.Score(fv, *w)
	result.Blockers = scoring.DetectBlockers(fv, s.blockerCfg)
	return fv, result, nil
}

// Item is one per-lead outcome of a batch triage call.
type Item struct {
	LeadID string              `json:"lead_id"`
	Error  string              `json:"error,omitempty"` // "lead_not_found" etc.
	Result *domain.ScoreResult `json:"result,omitempty"`
}

// Batch scores the given leads, writes the results back onto their records,
// and returns per-lead outcomes. An unresolvable id yields a per-lead error
// entry; it never fails the whole call.
func (s *Service) Batch(ctx context.Context, orgID string, ids []string, asOf time.Time) ([]Item, error) {
	leads, err := s.leads.Batch(ctx, orgID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Lead, len(leads))
	for i := range leads {
		byID[leads[i].ID] = &leads[i]
	}

	items := make([]Item, 0, len(ids))
	for _, id := range ids {
		lead, ok := byID[id]
		if !ok {
			items = append(items, Item{LeadID: id, Error: "lead_not_found"})
			continue
		}

		_, result, err := s.Evaluate(ctx, lead, asOf)
		if err != nil {
			items = append(items, Item{LeadID: id, Error: err.Error()})
			continue
		}

		if s.explainer != nil {
			result.Reasons = scoring.Elaborate(ctx, s.explainer, lead, result, 0)
		}

		if err := s.leads.UpdateScore(ctx, orgID, id, result, asOf); err != nil {
			// The score is still valid advice; log and serve it anyway.
			log.Printf("[Triage] score write-back failed for lead %s: %v", id, err)
		}
		r := result
		items = append(items, Item{LeadID: id, Result: &r})
	}
	return items, nil
}
