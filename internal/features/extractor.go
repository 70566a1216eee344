// Package features turns a raw lead record into a normalized feature vector.
//
// Extraction is pure and never fails: any missing lead field maps to a
// neutral mid-range value and lowers the present-count used for the scoring
// confidence, rather than raising an error. Scoring must never block on
// incomplete data.
package features

import (
	"math"
	"time"

	"github.com/enrollhq/triage-engine/internal/domain"
)

// Normalization constants. Tunable; chosen so typical admissions leads spread
// across the [0,1] range rather than saturating.
const (
	// touchpointSaturation is the lifetime touch count that maps to
	// engagement = 1.0 under log compression.
	touchpointSaturation = 50

	// recencyHalfLifeDays controls the inverse-exponential decay of the
	// recency feature.
	recencyHalfLifeDays = 14.0

	// neutralValue is the fail-closed default for missing fields.
	neutralValue = 0.5

	// requiredFieldCount is the number of lead fields the confidence
	// calculation considers: email, phone, consent, source, programme,
	// engagement history, document completeness, ID completeness.
	requiredFieldCount = 8
)

// sourceQuality maps lead source categories to a fixed quality score.
// Unlisted categories score unknownSourceQuality: an unrecognized source is
// a real (low) signal, not missing data.
var sourceQuality = map[string]float64{
	"referral":     0.95,
	"school_visit": 0.90,
	"open_day":     0.85,
	"organic":      0.75,
	"agent":        0.65,
	"paid_search":  0.55,
	"paid_social":  0.45,
	"purchased":    0.25,
	"unknown":      0.20,
}

const unknownSourceQuality = 0.20

// Context carries signals that live outside the lead record itself.
type Context struct {
	// CapacityRatio is remaining/total seats for the lead's target
	// programme, nil when no capacity data is available.
	CapacityRatio *float64
}

// Extract derives a feature vector from the lead's current state as of now.
// Pure function, no side effects.
func Extract(lead *domain.Lead, fctx Context, now time.Time) domain.FeatureVector {
	fv := domain.FeatureVector{
		Values:    make(map[string]float64, 12),
		Defaulted: make(map[string]bool, 4),
		Required:  requiredFieldCount,
		AsOf:      now,
	}

	// Contact channel signals.
	email := boolSignal(lead.Email != nil && *lead.Email != "")
	phone := boolSignal(lead.Phone != nil && *lead.Phone != "")
	fv.Values[domain.SignalEmailPresent] = email
	fv.Values[domain.SignalPhonePresent] = phone
	if email > 0 {
		fv.Present++
	}
	if phone > 0 {
		fv.Present++
	}

	consent := neutralValue
	if lead.ConsentGiven != nil {
		consent = boolSignal(*lead.ConsentGiven)
		fv.Present++
	} else {
		fv.Defaulted[domain.SignalConsentGiven] = true
	}
	fv.Values[domain.SignalConsentGiven] = consent

	fv.Values[domain.FeatureContactability] = 0.5*email + 0.35*phone + 0.15*consent

	// Engagement: log-compressed lifetime touches plus recency decay.
	// A lead with zero history scores a true zero here, not a neutral
	// default: never-engaged is a real signal.
	touches := float64(lead.TouchpointCount)
	fv.Values[domain.SignalLifetimeTouches] = touches
	engagement := math.Log1p(touches) / math.Log1p(touchpointSaturation)
	if engagement > 1 {
		engagement = 1
	}
	fv.Values[domain.FeatureEngagement] = engagement

	daysSince := math.Inf(1)
	if lead.LastEngagedAt != nil {
		daysSince = now.Sub(*lead.LastEngagedAt).Hours() / 24
		if daysSince < 0 {
			daysSince = 0
		}
	}
	recency := 0.0
	if !math.IsInf(daysSince, 1) {
		recency = math.Exp(-daysSince / recencyHalfLifeDays)
		fv.Values[domain.SignalDaysSinceTouch] = daysSince
	} else {
		fv.Values[domain.SignalDaysSinceTouch] = -1 // never engaged
	}
	fv.Values[domain.FeatureRecency] = recency
	if lead.TouchpointCount > 0 || lead.LastEngagedAt != nil {
		fv.Present++
	}

	// Source quality through the fixed lookup.
	if lead.Source != nil && *lead.Source != "" {
		q, ok := sourceQuality[*lead.Source]
		if !ok {
			q = unknownSourceQuality
		}
		fv.Values[domain.FeatureSourceQuality] = q
		fv.Present++
	} else {
		fv.Values[domain.FeatureSourceQuality] = neutralValue
		fv.Defaulted[domain.FeatureSourceQuality] = true
	}

	// Course fit: explicit flag in the extension map wins, a declared
	// programme is weak positive fit, nothing at all is neutral.
	switch {
	case lead.Attributes != nil && lead.Attributes["course_fit"] == true:
		fv.Values[domain.FeatureFit] = 1.0
		fv.Present++
	case lead.Attributes != nil && lead.Attributes["course_fit"] == false:
		fv.Values[domain.FeatureFit] = 0.25
		fv.Present++
	case lead.Programme != nil && *lead.Programme != "":
		fv.Values[domain.FeatureFit] = 0.6
		fv.Present++
	default:
		fv.Values[domain.FeatureFit] = neutralValue
		fv.Defaulted[domain.FeatureFit] = true
	}

	// Document and ID completeness ratios.
	doc := neutralValue
	if lead.DocCompleteness != nil {
		doc = clamp01(*lead.DocCompleteness)
		fv.Present++
	} else {
		fv.Defaulted["doc_completeness"] = true
	}
	id := neutralValue
	if lead.IDCompleteness != nil {
		id = clamp01(*lead.IDCompleteness)
		fv.Present++
	} else {
		fv.Defaulted["id_completeness"] = true
	}
	fv.Values[domain.FeatureCompleteness] = (doc + id) / 2

	// Downstream capacity, supplied by the caller when known.
	if fctx.CapacityRatio != nil {
		fv.Values[domain.SignalCapacityRatio] = clamp01(*fctx.CapacityRatio)
	} else {
		fv.Values[domain.SignalCapacityRatio] = 1.0
		fv.Defaulted[domain.SignalCapacityRatio] = true
	}

	if fv.Present > fv.Required {
		fv.Present = fv.Required
	}
	return fv
}

func boolSignal(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
