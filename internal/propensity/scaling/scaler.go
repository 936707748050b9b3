// Package scaling applies a fitted standardizing transform to the numeric
// columns of a feature vector.
package scaling

import (
	"fmt"
	"math"

	apperrors "propensity-scoring/internal/common/errors"
	"propensity-scoring/internal/models"
)

// Scaler transforms the numeric subset of a feature vector by name.
type Scaler interface {
	Transform(vec *models.FeatureVector) (*models.FeatureVector, error)
	SchemaVersion() string
}

// StandardScaler computes (x - mean) / scale for each fitted column. The
// fitted columns and the full column sequence it was fitted against are
// checked on every call.
type StandardScaler struct {
	schemaVersion string
	columns       []string
	names         []string
	mean          []float64
	scale         []float64
}

// NewStandardScaler validates fitted parameters. columns is the full
// feature sequence of the schema the scaler was fitted with.
func NewStandardScaler(schemaVersion string, columns, names []string, mean, scale []float64) (*StandardScaler, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("scaler has no fitted columns")
	}
	if len(mean) != len(names) || len(scale) != len(names) {
		return nil, fmt.Errorf("scaler has %d names, %d means and %d scales", len(names), len(mean), len(scale))
	}

	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
	}
	for i, n := range names {
		if !known[n] {
			return nil, apperrors.NewSchemaMismatchError("scaler",
				fmt.Sprintf("fitted column %q is not in schema %s", n, schemaVersion))
		}
		if math.IsNaN(mean[i]) || math.IsNaN(scale[i]) || math.IsInf(mean[i], 0) || math.IsInf(scale[i], 0) {
			return nil, fmt.Errorf("scaler parameters for %q are not finite", n)
		}
	}

	s := &StandardScaler{
		schemaVersion: schemaVersion,
		columns:       append([]string(nil), columns...),
		names:         append([]string(nil), names...),
		mean:          append([]float64(nil), mean...),
		scale:         make([]float64, len(scale)),
	}
	for i, v := range scale {
		// A constant training column has zero variance; sklearn scales it by 1.
		if v == 0 {
			v = 1
		}
		s.scale[i] = v
	}
	return s, nil
}

func (s *StandardScaler) SchemaVersion() string { return s.schemaVersion }

func (s *StandardScaler) Names() []string { return append([]string(nil), s.names...) }

func (s *StandardScaler) Transform(vec *models.FeatureVector) (*models.FeatureVector, error) {
	if vec.SchemaVersion() != s.schemaVersion {
		return nil, apperrors.NewSchemaMismatchError("scaler",
			fmt.Sprintf("scaler fitted for %s, vector built for %s", s.schemaVersion, vec.SchemaVersion()))
	}
	if pos := vec.SameColumns(s.columns); pos >= 0 {
		return nil, apperrors.NewSchemaMismatchError("scaler",
			fmt.Sprintf("feature columns diverge from fitted layout at position %d", pos))
	}

	values := vec.Values()
	for i, name := range s.names {
		idx := vec.Index(name)
		if idx < 0 {
			return nil, apperrors.NewSchemaMismatchError("scaler",
				fmt.Sprintf("fitted column %q missing from feature vector", name))
		}
		values[idx] = (values[idx] - s.mean[i]) / s.scale[i]
	}
	return vec.WithValues(values)
}
