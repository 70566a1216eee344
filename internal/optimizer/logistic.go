// Package optimizer refits scoring weights from measured action outcomes.
//
// The fit is a bounded logistic regression trained by projected gradient
// descent: after every epoch the coefficients are clamped back into [0,1]
// so the result is always a valid weight set. Model quality is reported as
// AUC so the guardrails can compare against the currently active set.
package optimizer

import (
	"math"
	"sort"
)

// Sample is one training example: the feature snapshot taken at prediction
// time, and the observed binary outcome (lead advanced stage).
type Sample struct {
	Features map[string]float64
	Label    float64 // 1.0 = advanced, 0.0 = did not
}

// TrainConfig controls the gradient descent fit.
type TrainConfig struct {
	LearningRate float64
	Epochs       int
	L2           float64
}

// DefaultTrainConfig returns conservative settings that converge on the
// small sample sizes this system sees.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{LearningRate: 0.1, Epochs: 300, L2: 0.01}
}

// Model is a fitted logistic classifier over named features.
type Model struct {
	Weights map[string]float64
	Bias    float64
}

// Predict returns the model's probability for one feature snapshot.
func (m Model) Predict(features map[string]float64) float64 {
	z := m.Bias
	for name, w := range m.Weights {
		z += w * features[name]
	}
	return 1 / (1 + math.Exp(-z))
}

// Train fits a bounded logistic regression over the given feature names.
// Coefficients are clamped to [0,1] after every epoch; the bias is free.
func Train(samples []Sample, featureNames []string, cfg TrainConfig) Model {
	if cfg.Epochs <= 0 {
		cfg = DefaultTrainConfig()
	}

	m := Model{Weights: make(map[string]float64, len(featureNames))}
	for _, name := range featureNames {
		m.Weights[name] = 0.5
	}

	n := float64(len(samples))
	if n == 0 {
		return m
	}

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		gradW := make(map[string]float64, len(featureNames))
		gradB := 0.0

		for _, s := range samples {
			err := m.Predict(s.Features) - s.Label
			gradB += err
			for _, name := range featureNames {
				gradW[name] += err * s.Features[name]
			}
		}

		m.Bias -= cfg.LearningRate * gradB / n
		for _, name := range featureNames {
			g := gradW[name]/n + cfg.L2*m.Weights[name]
			w := m.Weights[name] - cfg.LearningRate*g
			if w < 0 {
				w = 0
			} else if w > 1 {
				w = 1
			}
			m.Weights[name] = w
		}
	}
	return m
}

// AUC computes the area under the ROC curve for the model's predictions over
// the samples: the probability a random positive scores above a random
// negative, counting ties as half. Returns 0.5 when only one class is
// present.
func AUC(m Model, samples []Sample) float64 {
	type scored struct {
		p   float64
		pos bool
	}
	preds := make([]scored, 0, len(samples))
	var positives, negatives float64
	for _, s := range samples {
		pos := s.Label >= 0.5
		if pos {
			positives++
		} else {
			negatives++
		}
		preds = append(preds, scored{p: m.Predict(s.Features), pos: pos})
	}
	if positives == 0 || negatives == 0 {
		return 0.5
	}

	sort.Slice(preds, func(i, j int) bool { return preds[i].p < preds[j].p })

	// Rank-sum with tie averaging.
	var rankSum float64
	i := 0
	for i < len(preds) {
		j := i
		for j < len(preds) && preds[j].p == preds[i].p {
			j++
		}
		avgRank := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			if preds[k].pos {
				rankSum += avgRank
			}
		}
		i = j
	}
	return (rankSum - positives*(positives+1)/2) / (positives * negatives)
}
