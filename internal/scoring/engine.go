// Package scoring applies organization weights to a feature vector and
// produces a bounded score, a probability estimate, confidence, and the
// deterministic reason strings behind them. It also hosts the blocker
// detector.
//
// Everything in this package is pure and stateless: safe to call from any
// number of concurrent request handlers, no network, no storage.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/enrollhq/triage-engine/internal/domain"
)

const (
	// MinConfidence floors the confidence estimate so a lead with nothing
	// but an ID still gets a usable (if weak) score.
	MinConfidence = 0.2

	// logisticSteepness shapes the probability curve around the midpoint
	// of the normalized weighted sum.
	logisticSteepness = 6.0
)

// contribution is one component's centered pull on the score.
type contribution struct {
	name  string
	delta float64 // w * (v - 0.5)
}

// Score computes the weighted linear combination of feature components and
// derives the display score, probability, confidence, band, and reasons.
// Blocker detection is separate (DetectBlockers); callers that want both
// attach the blockers to the returned result.
func Score(fv domain.FeatureVector, weights domain.ScoringWeights) domain.ScoreResult {
	var raw, total float64
	contribs := make([]contribution, 0, len(weights.Components))

	for name, w := range weights.Components {
		v, ok := fv.Values[name]
		if !ok {
			continue
		}
		raw += w * v
		total += w
		contribs = append(contribs, contribution{name: name, delta: w * (v - 0.5)})
	}

	result := domain.ScoreResult{}
	if total <= 0 {
		// Degenerate weight set: neutral output rather than an error.
		result.Score = 50
		result.Probability = 0.5
	} else {
		norm := raw / total
		result.Score = clamp(norm*100, 0, 100)
		result.Probability = logistic(logisticSteepness * (norm - 0.5))
	}
	result.Band = domain.BandForScore(result.Score)

	result.Confidence = fv.PresentRatio()
	if result.Confidence < MinConfidence {
		result.Confidence = MinConfidence
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}

	result.Reasons = reasonsFromContributions(contribs, fv)
	return result
}

// reasonsFromContributions picks the top-2 positive and top-1 negative
// weighted contributions and renders them as fixed-format strings. Ties
// break by component name so output is deterministic.
func reasonsFromContributions(contribs []contribution, fv domain.FeatureVector) []string {
	sort.Slice(contribs, func(i, j int) bool {
		if contribs[i].delta != contribs[j].delta {
			return contribs[i].delta > contribs[j].delta
		}
		return contribs[i].name < contribs[j].name
	})

	reasons := make([]string, 0, 3)
	positives := 0
	for _, c := range contribs {
		if c.delta <= 0 || positives >= 2 {
			break
		}
		reasons = append(reasons, fmt.Sprintf("%s is a strength (%+.2f)", describe(c.name), c.delta))
		positives++
	}
	if n := len(contribs); n > 0 {
		worst := contribs[n-1]
		if worst.delta < 0 {
			label := fmt.Sprintf("%s is holding the score back (%+.2f)", describe(worst.name), worst.delta)
			if fv.Defaulted[worst.name] {
				label = fmt.Sprintf("%s is unknown, assumed neutral", describe(worst.name))
			}
			reasons = append(reasons, label)
		}
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "no feature stands out; profile is neutral")
	}
	return reasons
}

// describe maps component names to human-readable phrases.
func describe(name string) string {
	switch name {
	case domain.FeatureEngagement:
		return "engagement history"
	case domain.FeatureRecency:
		return "recent contact"
	case domain.FeatureSourceQuality:
		return "lead source quality"
	case domain.FeatureContactability:
		return "contact channel coverage"
	case domain.FeatureFit:
		return "course fit"
	case domain.FeatureCompleteness:
		return "application completeness"
	default:
		return name
	}
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
