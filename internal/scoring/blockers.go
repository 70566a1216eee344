package scoring

import (
	"fmt"

	"github.com/enrollhq/triage-engine/internal/domain"
)

// BlockerConfig holds the tunable thresholds for blocker detection.
type BlockerConfig struct {
	// StallThresholdDays is how long a lead can go without an engagement
	// signal before it counts as stalled.
	StallThresholdDays float64

	// SourceQualityFloor is the minimum acceptable source quality score.
	SourceQualityFloor float64
}

// DefaultBlockerConfig returns the standard thresholds.
func DefaultBlockerConfig() BlockerConfig {
	return BlockerConfig{
		StallThresholdDays: 14,
		SourceQualityFloor: 0.4,
	}
}

// DetectBlockers evaluates the feature vector against the fixed blocker
// taxonomy. Pure function, independent of the numeric score. Multiple
// blockers may co-exist; they are returned as a set, never reduced to one.
func DetectBlockers(fv domain.FeatureVector, cfg BlockerConfig) []domain.Blocker {
	var blockers []domain.Blocker

	// data_completeness: missing required contact channels or an explicit
	// consent refusal. An unknown consent flag lowers confidence instead.
	missing := 0
	var missingFields []string
	if fv.Get(domain.SignalEmailPresent, 0) == 0 {
		missing++
		missingFields = append(missingFields, "email")
	}
	if fv.Get(domain.SignalPhonePresent, 0) == 0 {
		missing++
		missingFields = append(missingFields, "phone")
	}
	if !fv.Defaulted[domain.SignalConsentGiven] && fv.Get(domain.SignalConsentGiven, 1) == 0 {
		missing++
		missingFields = append(missingFields, "consent")
	}
	if missing > 0 {
		severity := domain.SeverityMedium
		if missing >= 2 {
			severity = domain.SeverityHigh
		}
		blockers = append(blockers, domain.Blocker{
			Type:           domain.BlockerDataCompleteness,
			Severity:       severity,
			Description:    fmt.Sprintf("missing required contact data: %s", joinFields(missingFields)),
			ActionRequired: "collect missing contact details before outreach",
		})
	}

	// engagement_stall: zero lifetime engagement and nothing within the
	// stall window.
	touches := fv.Get(domain.SignalLifetimeTouches, 0)
	days := fv.Get(domain.SignalDaysSinceTouch, -1)
	if touches == 0 && (days < 0 || days > cfg.StallThresholdDays) {
		blockers = append(blockers, domain.Blocker{
			Type:           domain.BlockerEngagementStall,
			Severity:       domain.SeverityHigh,
			Description:    fmt.Sprintf("no engagement recorded within %.0f days", cfg.StallThresholdDays),
			ActionRequired: "re-engagement outreach or recycle the lead",
		})
	}

	// source_quality: known source below the quality floor. Severity
	// scales with how far below the floor it sits.
	if !fv.Defaulted[domain.FeatureSourceQuality] {
		q := fv.Get(domain.FeatureSourceQuality, 1)
		if q < cfg.SourceQualityFloor {
			severity := domain.SeverityLow
			if q < cfg.SourceQualityFloor/2 {
				severity = domain.SeverityMedium
			}
			blockers = append(blockers, domain.Blocker{
				Type:           domain.BlockerSourceQuality,
				Severity:       severity,
				Description:    fmt.Sprintf("lead source quality %.2f is below floor %.2f", q, cfg.SourceQualityFloor),
				ActionRequired: "verify lead intent before investing outreach effort",
			})
		}
	}

	// capacity: the target programme reports no remaining seats. Critical
	// regardless of the lead's own score.
	if !fv.Defaulted[domain.SignalCapacityRatio] && fv.Get(domain.SignalCapacityRatio, 1) == 0 {
		blockers = append(blockers, domain.Blocker{
			Type:           domain.BlockerCapacity,
			Severity:       domain.SeverityCritical,
			Description:    "target programme has no remaining capacity",
			ActionRequired: "offer an alternative programme or waitlist the lead",
		})
	}

	return blockers
}

// TopBlocker returns the most severe blocker, or nil when none exist.
// Ties keep the first detected (taxonomy order).
func TopBlocker(blockers []domain.Blocker) *domain.Blocker {
	var top *domain.Blocker
	for i := range blockers {
		if top == nil || blockers[i].Severity.Rank() > top.Severity.Rank() {
			top = &blockers[i]
		}
	}
	return top
}

func joinFields(fields []string) string {
	out := ""
	for i, f := range fields {
		if i > 0 {
			out += ", "
		}
		out += f
	}
	return out
}
