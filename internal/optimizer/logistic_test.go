package optimizer

import (
	"math/rand"
	"testing"

	"github.com/enrollhq/triage-engine/internal/domain"
)

// separableSamples builds a cleanly separable set: high engagement leads
// convert, low engagement leads do not.
func separableSamples(n int, rng *rand.Rand) []Sample {
	samples := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			samples = append(samples, Sample{
				Features: map[string]float64{
					domain.FeatureEngagement: 0.8 + 0.2*rng.Float64(),
					domain.FeatureRecency:    0.7 + 0.3*rng.Float64(),
				},
				Label: 1,
			})
		} else {
			samples = append(samples, Sample{
				Features: map[string]float64{
					domain.FeatureEngagement: 0.2 * rng.Float64(),
					domain.FeatureRecency:    0.3 * rng.Float64(),
				},
				Label: 0,
			})
		}
	}
	return samples
}

func TestTrainSeparatesClasses(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	samples := separableSamples(200, rng)
	names := []string{domain.FeatureEngagement, domain.FeatureRecency}

	m := Train(samples, names, DefaultTrainConfig())

	auc := AUC(m, samples)
	if auc < 0.95 {
		t.Errorf("AUC on separable data = %f, want >= 0.95", auc)
	}

	high := m.Predict(map[string]float64{domain.FeatureEngagement: 0.9, domain.FeatureRecency: 0.9})
	low := m.Predict(map[string]float64{domain.FeatureEngagement: 0.05, domain.FeatureRecency: 0.1})
	if high <= low {
		t.Errorf("high-signal prediction %f should exceed low-signal %f", high, low)
	}
}

func TestTrainWeightsBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	samples := separableSamples(100, rng)
	names := []string{domain.FeatureEngagement, domain.FeatureRecency}

	// Aggressive learning rate to push against the bounds.
	m := Train(samples, names, TrainConfig{LearningRate: 5, Epochs: 200, L2: 0})

	for name, w := range m.Weights {
		if w < 0 || w > 1 {
			t.Errorf("weight %s = %f escaped [0,1]", name, w)
		}
	}
}

func TestTrainEmptySamples(t *testing.T) {
	m := Train(nil, []string{domain.FeatureEngagement}, DefaultTrainConfig())
	if m.Weights[domain.FeatureEngagement] != 0.5 {
		t.Errorf("empty training should keep the 0.5 init, got %f", m.Weights[domain.FeatureEngagement])
	}
}

func TestAUCKnownValues(t *testing.T) {
	// Model that echoes a single feature.
	m := Model{Weights: map[string]float64{"x": 1}, Bias: 0}

	perfect := []Sample{
		{Features: map[string]float64{"x": 0.9}, Label: 1},
		{Features: map[string]float64{"x": 0.8}, Label: 1},
		{Features: map[string]float64{"x": 0.2}, Label: 0},
		{Features: map[string]float64{"x": 0.1}, Label: 0},
	}
	if got := AUC(m, perfect); got != 1.0 {
		t.Errorf("perfect ranking AUC = %f, want 1.0", got)
	}

	inverted := []Sample{
		{Features: map[string]float64{"x": 0.1}, Label: 1},
		{Features: map[string]float64{"x": 0.9}, Label: 0},
	}
	if got := AUC(m, inverted); got != 0.0 {
		t.Errorf("inverted ranking AUC = %f, want 0.0", got)
	}

	tied := []Sample{
		{Features: map[string]float64{"x": 0.5}, Label: 1},
		{Features: map[string]float64{"x": 0.5}, Label: 0},
	}
	if got := AUC(m, tied); got != 0.5 {
		t.Errorf("all-tied AUC = %f, want 0.5", got)
	}
}

func TestAUCSingleClass(t *testing.T) {
	m := Model{Weights: map[string]float64{"x": 1}}
	onlyPos := []Sample{{Features: map[string]float64{"x": 0.9}, Label: 1}}
	if got := AUC(m, onlyPos); got != 0.5 {
		t.Errorf("single-class AUC = %f, want neutral 0.5", got)
	}
}
