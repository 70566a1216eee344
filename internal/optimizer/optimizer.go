package optimizer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/enrollhq/triage-engine/internal/domain"
	"github.com/enrollhq/triage-engine/internal/service/weights"
)

// createdBy identifies optimizer-written audit entries.
const createdBy = "optimizer"

// componentNames are the weight components the refit produces. They mirror
// the composite features the extractor emits.
var componentNames = []string{
	domain.FeatureEngagement,
	domain.FeatureRecency,
	domain.FeatureSourceQuality,
	domain.FeatureContactability,
	domain.FeatureFit,
	domain.FeatureCompleteness,
}

// TrainingSource supplies measured executions for an organization.
type TrainingSource interface {
	ListTrainable(ctx context.Context, orgID string, since time.Time) ([]domain.ActionExecution, error)
}

// Config holds the refit guardrails.
type Config struct {
	// MinSampleSize is the smallest outcome window the optimizer will fit
	// on; below it the cycle is skipped with an audit entry.
	MinSampleSize int

	// PerformanceTolerance is how much AUC regression against the active
	// set is tolerated before the new fit is rejected. Guards against
	// weight thrash from noisy samples.
	PerformanceTolerance float64

	// Window bounds how far back measured executions are considered.
	Window time.Duration

	Train TrainConfig
}

// DefaultOptimizerConfig returns the standard guardrails.
func DefaultOptimizerConfig() Config {
	return Config{
		MinSampleSize:        50,
		PerformanceTolerance: 0.02,
		Window:               30 * 24 * time.Hour,
		Train:                DefaultTrainConfig(),
	}
}

// Optimizer runs scheduled weight refits per organization. Never on the
// request path.
type Optimizer struct {
	source  TrainingSource
	weights *weights.Service
	cfg     Config
}

// New creates an optimizer.
func New(source TrainingSource, w *weights.Service, cfg Config) *Optimizer {
	if cfg.MinSampleSize <= 0 {
		cfg = DefaultOptimizerConfig()
	}
	return &Optimizer{source: source, weights: w, cfg: cfg}
}

// CycleReport summarizes one refit attempt for an organization.
type CycleReport struct {
	OrganizationID string             `json:"organization_id"`
	SampleSize     int                `json:"sample_size"`
	Activated      bool               `json:"activated"`
	SkipReason     string             `json:"skip_reason,omitempty"`
	AUC            float64            `json:"auc"`
	ActiveAUC      *float64           `json:"active_auc,omitempty"`
	Components     map[string]float64 `json:"components,omitempty"`
}

// RunOrg executes one refit cycle for the organization: load the outcome
// window, fit, and activate only if the sample is large enough and the fit
// does not regress past tolerance. Skipped cycles leave an audit entry and
// the active set untouched. Activation is all-or-nothing: on context
// cancellation no partial weight change is visible.
func (o *Optimizer) RunOrg(ctx context.Context, orgID string) (*CycleReport, error) {
	report := &CycleReport{OrganizationID: orgID}

	since := time.Now().UTC().Add(-o.cfg.Window)
	executions, err := o.source.ListTrainable(ctx, orgID, since)
	if err != nil {
		return nil, fmt.Errorf("load training window: %w", err)
	}

	samples := make([]Sample, 0, len(executions))
	for _, e := range executions {
		if !e.Trainable() {
			continue
		}
		label := 0.0
		if *e.LeadMoved {
			label = 1.0
		}
		samples = append(samples, Sample{Features: e.Features, Label: label})
	}
	report.SampleSize = len(samples)

	if len(samples) < o.cfg.MinSampleSize {
		report.SkipReason = domain.ReasonInsufficientSample
		if _, err := o.weights.RecordSkippedUpdate(ctx, orgID, domain.ReasonInsufficientSample, createdBy, len(samples), nil); err != nil {
			return report, err
		}
		log.Printf("[Optimizer] org %s: %d samples < %d minimum, cycle skipped", orgID, len(samples), o.cfg.MinSampleSize)
		return report, nil
	}

	model := Train(samples, componentNames, o.cfg.Train)
	auc := AUC(model, samples)
	report.AUC = auc
	report.Components = model.Weights

	if ctx.Err() != nil {
		return report, ctx.Err()
	}

	activePerf, err := o.activePerformance(ctx, orgID)
	if err != nil {
		return report, err
	}
	report.ActiveAUC = activePerf

	if activePerf != nil && auc < *activePerf-o.cfg.PerformanceTolerance {
		report.SkipReason = domain.ReasonPerformanceRegression
		if _, err := o.weights.RecordSkippedUpdate(ctx, orgID, domain.ReasonPerformanceRegression, createdBy, len(samples), &auc); err != nil {
			return report, err
		}
		log.Printf("[Optimizer] org %s: refit AUC %.3f regresses past active %.3f - %.3f tolerance, cycle skipped",
			orgID, auc, *activePerf, o.cfg.PerformanceTolerance)
		return report, nil
	}

	sampleSize := len(samples)
	_, err = o.weights.Activate(ctx, weights.ActivateInput{
		OrganizationID:   orgID,
		Components:       model.Weights,
		Reason:           domain.ReasonOptimizerRefit,
		CreatedBy:        createdBy,
		SampleSize:       &sampleSize,
		ModelPerformance: &auc,
		Notes:            fmt.Sprintf("refit on %d outcomes, AUC %.3f", sampleSize, auc),
	})
	if err != nil {
		// Lost activation race or storage trouble: skip this cycle and
		// try again next scheduled run.
		return report, fmt.Errorf("activate refit weights: %w", err)
	}

	report.Activated = true
	log.Printf("[Optimizer] org %s: activated refit weights (n=%d, AUC=%.3f)", orgID, sampleSize, auc)
	return report, nil
}

// activePerformance finds the recorded model performance of the currently
// active weight set via its activation audit entry. Nil when the active set
// is the built-in default or was activated without a performance figure.
func (o *Optimizer) activePerformance(ctx context.Context, orgID string) (*float64, error) {
	active, err := o.weights.GetActive(ctx, orgID)
	if err != nil {
		return nil, err
	}
	history, err := o.weights.History(ctx, orgID, 100)
	if err != nil {
		return nil, err
	}
	for _, entry := range history {
		if entry.WeightsID != nil && *entry.WeightsID == active.ID {
			return entry.ModelPerformance, nil
		}
	}
	return nil, nil
}
