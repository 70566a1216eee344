package domain

import (
	"fmt"
	"time"
)

// Feature component names. Weight components and feature vector entries share
// this vocabulary; the scoring engine pairs them by name.
const (
	FeatureEngagement     = "engagement"
	FeatureRecency        = "recency"
	FeatureSourceQuality  = "source_quality"
	FeatureContactability = "contactability"
	FeatureFit            = "fit"
	FeatureCompleteness   = "completeness"

	// Raw signals carried alongside the composite components. They don't
	// receive weights; the blocker detector reads them directly.
	SignalEmailPresent   = "email_present"
	SignalPhonePresent   = "phone_present"
	SignalConsentGiven   = "consent_given"
	SignalLifetimeTouches = "lifetime_touches"
	SignalDaysSinceTouch  = "days_since_touch"
	SignalCapacityRatio   = "capacity_ratio"
)

// FeatureVector holds normalized signals derived from a lead at scoring time.
// It is ephemeral: computed fresh per scoring call, never persisted as its
// own entity (executions snapshot Values for later training).
type FeatureVector struct {
	// Values maps feature/signal names to normalized values. Composite
	// components lie in [0,1]; raw signals keep their natural scale.
	Values map[string]float64 `json:"values"`

	// Defaulted marks features that fell back to a neutral value because
	// the underlying lead field was missing.
	Defaulted map[string]bool `json:"defaulted"`

	// Present and Required drive the confidence calculation:
	// features_present_ratio = Present / Required.
	Present  int `json:"present"`
	Required int `json:"required"`

	AsOf time.Time `json:"as_of"`
}

// Get returns a feature value, or the given fallback if absent.
func (fv FeatureVector) Get(name string, fallback float64) float64 {
	if v, ok := fv.Values[name]; ok {
		return v
	}
	return fallback
}

// PresentRatio returns the fraction of required lead fields that carried real
// data (not defaults) when the vector was extracted.
func (fv FeatureVector) PresentRatio() float64 {
	if fv.Required <= 0 {
		return 0
	}
	return float64(fv.Present) / float64(fv.Required)
}

// ScoringWeights is one named weight set for an organization. Exactly one set
// per organization is active at any time; each component lies in [0,1] and
// the components need not sum to 1.
type ScoringWeights struct {
	ID             string             `json:"id" db:"id"`
	OrganizationID string             `json:"organization_id" db:"organization_id"`
	Components     map[string]float64 `json:"components" db:"components"`
	IsActive       bool               `json:"is_active" db:"is_active"`
	Notes          string             `json:"notes" db:"notes"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
}

// Validate checks component bounds. It does not check component names: an
// unknown component is simply never paired with a feature.
func (w ScoringWeights) Validate() error {
	if len(w.Components) == 0 {
		return fmt.Errorf("weight set has no components")
	}
	for name, v := range w.Components {
		if v < 0 || v > 1 {
			return fmt.Errorf("component %q = %.4f outside [0,1]", name, v)
		}
	}
	return nil
}

// WeightsAuditEntry is an immutable history record written on every weight
// activation and on every skipped optimizer update. Never mutated or deleted.
type WeightsAuditEntry struct {
	ID               string             `json:"id" db:"id"`
	OrganizationID   string             `json:"organization_id" db:"organization_id"`
	WeightsID        *string            `json:"weights_id" db:"weights_id"`
	Components       map[string]float64 `json:"components" db:"components"`
	ChangeReason     string             `json:"change_reason" db:"change_reason"`
	SampleSize       *int               `json:"sample_size" db:"sample_size"`
	ModelPerformance *float64           `json:"model_performance" db:"model_performance"`
	CreatedBy        string             `json:"created_by" db:"created_by"`
	CreatedAt        time.Time          `json:"created_at" db:"created_at"`
}

// Audit change reasons written by the optimizer and admin API.
const (
	ReasonManualActivation      = "manual_activation"
	ReasonOptimizerRefit        = "optimizer_refit"
	ReasonInsufficientSample    = "insufficient_sample"
	ReasonPerformanceRegression = "performance_regression"
)

// ScoreBand buckets a 0-100 score for dashboard display.
type ScoreBand string

const (
	BandHot  ScoreBand = "hot"
	BandWarm ScoreBand = "warm"
	BandCool ScoreBand = "cool"
	BandCold ScoreBand = "cold"
)

// BandForScore maps a display score to its band.
func BandForScore(score float64) ScoreBand {
	switch {
	case score >= 75:
		return BandHot
	case score >= 50:
		return BandWarm
	case score >= 25:
		return BandCool
	default:
		return BandCold
	}
}

// ScoreResult is the output of a scoring pass. Attached to the lead it was
// computed for and recomputed on demand, not append-only.
type ScoreResult struct {
	Score       float64   `json:"score"`       // 0-100 display score
	Probability float64   `json:"probability"` // 0.0-1.0, monotone in the weighted sum
	Confidence  float64   `json:"confidence"`  // 0.0-1.0, floored
	Band        ScoreBand `json:"band"`
	Reasons     []string  `json:"reasons"`
	Blockers    []Blocker `json:"blockers"`
}

// BlockerType is the fixed taxonomy of conditions that prevent progression.
type BlockerType string

const (
	BlockerDataCompleteness BlockerType = "data_completeness"
	BlockerEngagementStall  BlockerType = "engagement_stall"
	BlockerSourceQuality    BlockerType = "source_quality"
	BlockerCapacity         BlockerType = "capacity"
	BlockerOther            BlockerType = "other"
)

// BlockerSeverity orders blockers for action selection.
type BlockerSeverity string

const (
	SeverityCritical BlockerSeverity = "critical"
	SeverityHigh     BlockerSeverity = "high"
	SeverityMedium   BlockerSeverity = "medium"
	SeverityLow      BlockerSeverity = "low"
)

var severityRank = map[BlockerSeverity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
}

// Rank returns a numeric ordering for severities (critical highest).
func (s BlockerSeverity) Rank() int { return severityRank[s] }

// Blocker is a detected condition preventing a lead from progressing.
// Ephemeral: recomputed each scoring pass, never persisted with its own
// lifecycle.
type Blocker struct {
	Type           BlockerType     `json:"type"`
	Severity       BlockerSeverity `json:"severity"`
	Description    string          `json:"description"`
	ActionRequired string          `json:"action_required"`
}
