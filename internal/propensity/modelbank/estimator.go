package modelbank

import (
	"fmt"
	"math"

	apperrors "propensity-scoring/internal/common/errors"
	"propensity-scoring/internal/models"
)

// Estimator returns the positive-class probability for one feature row.
type Estimator interface {
	Predict(vec *models.FeatureVector) (float64, error)
}

// MultiOutputEstimator returns one positive-class probability per output.
type MultiOutputEstimator interface {
	PredictAll(vec *models.FeatureVector) ([]float64, error)
	Outputs() int
}

// EstimatorFunc adapts a plain function to Estimator.
type EstimatorFunc func(vec *models.FeatureVector) (float64, error)

func (f EstimatorFunc) Predict(vec *models.FeatureVector) (float64, error) { return f(vec) }

// LogisticSpec is the serialized form of a fitted logistic estimator.
type LogisticSpec struct {
	SchemaVersion string             `yaml:"schema_version" json:"schemaVersion"`
	Features      []string           `yaml:"features" json:"features"`
	Intercept     float64            `yaml:"intercept" json:"intercept"`
	Coefficients  map[string]float64 `yaml:"coefficients" json:"coefficients"`
}

// LogisticEstimator is sigmoid(intercept + w.x) over a fixed column layout.
type LogisticEstimator struct {
	schemaVersion string
	features      []string
	weights       []float64
	intercept     float64
}

func NewLogisticEstimator(spec LogisticSpec) (*LogisticEstimator, error) {
	if len(spec.Features) == 0 {
		return nil, fmt.Errorf("logistic estimator has no features")
	}

	pos := make(map[string]int, len(spec.Features))
	for i, f := range spec.Features {
		pos[f] = i
	}

	weights := make([]float64, len(spec.Features))
	for name, w := range spec.Coefficients {
		i, ok := pos[name]
		if !ok {
			return nil, apperrors.NewSchemaMismatchError("estimator",
				fmt.Sprintf("coefficient %q is not a fitted feature", name))
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("coefficient %q is not finite", name)
		}
		weights[i] = w
	}

	return &LogisticEstimator{
		schemaVersion: spec.SchemaVersion,
		features:      append([]string(nil), spec.Features...),
		weights:       weights,
		intercept:     spec.Intercept,
	}, nil
}

func (e *LogisticEstimator) Features() []string { return append([]string(nil), e.features...) }

func (e *LogisticEstimator) SchemaVersion() string { return e.schemaVersion }

func (e *LogisticEstimator) Predict(vec *models.FeatureVector) (float64, error) {
	if pos := vec.SameColumns(e.features); pos >= 0 {
		return 0, apperrors.NewSchemaMismatchError("estimator",
			fmt.Sprintf("feature columns diverge from fitted layout at position %d", pos))
	}
	z := e.intercept
	for i, w := range e.weights {
		z += w * vec.At(i)
	}
	return sigmoid(z), nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	ez := math.Exp(z)
	return ez / (1 + ez)
}

// MultiLogistic is a multi-output estimator with one logistic head per
// output, all sharing a column layout.
type MultiLogistic struct {
	heads []*LogisticEstimator
}

func NewMultiLogistic(specs []LogisticSpec) (*MultiLogistic, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("multi-output estimator has no outputs")
	}
	heads := make([]*LogisticEstimator, len(specs))
	for i, spec := range specs {
		h, err := NewLogisticEstimator(spec)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		if i > 0 && h.SchemaVersion() != heads[0].SchemaVersion() {
			return nil, apperrors.NewSchemaMismatchError("estimator",
				fmt.Sprintf("output %d fitted for %s, output 0 for %s", i, h.SchemaVersion(), heads[0].SchemaVersion()))
		}
		heads[i] = h
	}
	return &MultiLogistic{heads: heads}, nil
}

func (m *MultiLogistic) Outputs() int { return len(m.heads) }

func (m *MultiLogistic) SchemaVersion() string { return m.heads[0].SchemaVersion() }

func (m *MultiLogistic) PredictAll(vec *models.FeatureVector) ([]float64, error) {
	out := make([]float64, len(m.heads))
	for i, h := range m.heads {
		p, err := h.Predict(vec)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}
