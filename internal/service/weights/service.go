package weights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/enrollhq/triage-engine/internal/domain"
	"github.com/enrollhq/triage-engine/internal/scoring"
)

// DefaultCacheTTL bounds staleness of the active-weights cache between
// explicit invalidations.
const DefaultCacheTTL = 5 * time.Minute

// Service implements weight store business logic: active-set lookup with
// default fallback, atomic activation with audit, and cache invalidation.
// All public methods are safe for concurrent use.
type Service struct {
	repo     Repository
	cache    *redis.Client // optional; nil disables caching
	cacheTTL time.Duration
}

// NewService creates a weights service. cache may be nil.
func NewService(repo Repository, cache *redis.Client) *Service {
	return &Service{repo: repo, cache: cache, cacheTTL: DefaultCacheTTL}
}

func cacheKey(orgID string) string { return "triage:weights:active:" + orgID }

// GetActive returns the organization's active weight set, consulting the
// cache first. When the organization has no active set (new org, optimizer
// never ran) it returns the built-in defaults: a silent, logged degradation,
// never an error.
func (s *Service) GetActive(ctx context.Context, orgID string) (*domain.ScoringWeights, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey(orgID)).Bytes(); err == nil {
			var w domain.ScoringWeights
			if json.Unmarshal(raw, &w) == nil {
				return &w, nil
			}
		}
	}

	w, err := s.repo.GetActive(ctx, orgID)
	if errors.Is(err, ErrNoActiveSet) {
		def := scoring.DefaultWeights()
		def.OrganizationID = orgID
		log.Printf("[Weights] org %s has no active set, using built-in defaults", orgID)
		return &def, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active weights: %w", err)
	}

	s.cacheSet(ctx, orgID, w)
	return w, nil
}

// ActivateInput carries everything needed to activate a new weight set.
type ActivateInput struct {
	OrganizationID   string
	Components       map[string]float64
	Reason           string
	CreatedBy        string
	SampleSize       *int
	ModelPerformance *float64
	Notes            string
}

// Activate installs a new active weight set for the organization and writes
// its audit entry in the same transaction. A storage-level uniqueness
// conflict (concurrent activation) is retried once with a fresh snapshot;
// a second failure surfaces as ErrActivationFailed. Both attempts leave
// audit entries, so a lost race is still visible in history.
func (s *Service) Activate(ctx context.Context, input ActivateInput) (*domain.WeightsAuditEntry, error) {
	if input.OrganizationID == "" {
		return nil, fmt.Errorf("organization id is required")
	}
	if input.Reason == "" {
		input.Reason = domain.ReasonManualActivation
	}

	var entry *domain.WeightsAuditEntry
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		entry, err = s.activateOnce(ctx, input)
		if err == nil {
			s.invalidate(ctx, input.OrganizationID)
			return entry, nil
		}
		if !errors.Is(err, ErrActivationConflict) {
			return nil, err
		}
		log.Printf("[Weights] activation conflict for org %s (attempt %d), retrying with fresh snapshot", input.OrganizationID, attempt+1)
	}
	return nil, fmt.Errorf("%w: %v", ErrActivationFailed, err)
}

func (s *Service) activateOnce(ctx context.Context, input ActivateInput) (*domain.WeightsAuditEntry, error) {
	now := time.Now().UTC()
	w := &domain.ScoringWeights{
		ID:             uuid.New().String(),
		OrganizationID: input.OrganizationID,
		Components:     input.Components,
		IsActive:       true,
		Notes:          input.Notes,
		CreatedAt:      now,
	}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("invalid weight set: %w", err)
	}

	entry := &domain.WeightsAuditEntry{
		ID:               uuid.New().String(),
		OrganizationID:   input.OrganizationID,
		WeightsID:        &w.ID,
		Components:       input.Components,
		ChangeReason:     input.Reason,
		SampleSize:       input.SampleSize,
		ModelPerformance: input.ModelPerformance,
		CreatedBy:        input.CreatedBy,
		CreatedAt:        now,
	}
	if err := s.repo.Activate(ctx, w, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// RecordSkippedUpdate appends an audit entry describing why the optimizer
// left the active set untouched (insufficient sample, performance
// regression). The active set itself is not modified.
func (s *Service) RecordSkippedUpdate(ctx context.Context, orgID, reason, by string, sampleSize int, perf *float64) (*domain.WeightsAuditEntry, error) {
	entry := &domain.WeightsAuditEntry{
		ID:               uuid.New().String(),
		OrganizationID:   orgID,
		Components:       map[string]float64{},
		ChangeReason:     reason,
		SampleSize:       &sampleSize,
		ModelPerformance: perf,
		CreatedBy:        by,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.repo.InsertAudit(ctx, entry); err != nil {
		return nil, fmt.Errorf("record skipped update: %w", err)
	}
	return entry, nil
}

// History returns the organization's audit trail, newest first.
func (s *Service) History(ctx context.Context, orgID string, limit int) ([]domain.WeightsAuditEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.History(ctx, orgID, limit)
}

func (s *Service) cacheSet(ctx context.Context, orgID string, w *domain.ScoringWeights) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(w)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(orgID), raw, s.cacheTTL).Err(); err != nil {
		log.Printf("[Weights] cache set failed for org %s: %v", orgID, err)
	}
}

func (s *Service) invalidate(ctx context.Context, orgID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey(orgID)).Err(); err != nil {
		log.Printf("[Weights] cache invalidation failed for org %s: %v", orgID, err)
	}
}
