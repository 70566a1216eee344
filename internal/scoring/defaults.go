package scoring

import "github.com/enrollhq/triage-engine/internal/domain"

// DefaultWeightsID marks the built-in set so callers can tell the fallback
// apart from stored weights, which carry generated UUIDs.
const DefaultWeightsID = "builtin-default"

// DefaultWeights returns the built-in weight set used when an organization
// has no active weights yet (new org, optimizer never ran). Always available,
// no storage or network involved.
//
// The relative ordering encodes admissions folklore more than fitted truth:
// reachable, recently engaged leads convert; source quality matters but less
// than behavior. The optimizer replaces these as soon as it has enough
// measured outcomes.
func DefaultWeights() domain.ScoringWeights {
	return domain.ScoringWeights{
		ID:       DefaultWeightsID,
		IsActive: true,
		Notes:    "built-in default weight set",
		Components: map[string]float64{
			domain.FeatureContactability: 0.90,
			domain.FeatureEngagement:     0.85,
			domain.FeatureRecency:        0.80,
			domain.FeatureSourceQuality:  0.60,
			domain.FeatureFit:            0.50,
			domain.FeatureCompleteness:   0.45,
		},
	}
}
