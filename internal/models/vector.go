package models

import "fmt"

// FeatureVector is an ordered, named feature row for one schema version.
// Names are fixed at construction. Values may be replaced through
// WithValues, which returns a new vector.
type FeatureVector struct {
	schemaVersion string
	names         []string
	values        []float64
	index         map[string]int
}

func NewFeatureVector(schemaVersion string, names []string, values []float64) (*FeatureVector, error) {
	if len(names) != len(values) {
		return nil, fmt.Errorf("feature vector has %d names and %d values", len(names), len(values))
	}
	index := make(map[string]int, len(names))
	for i, n := range names {
		if _, dup := index[n]; dup {
			return nil, fmt.Errorf("duplicate feature name %q", n)
		}
		index[n] = i
	}
	return &FeatureVector{
		schemaVersion: schemaVersion,
		names:         append([]string(nil), names...),
		values:        append([]float64(nil), values...),
		index:         index,
	}, nil
}

func (v *FeatureVector) SchemaVersion() string { return v.schemaVersion }

func (v *FeatureVector) Len() int { return len(v.names) }

func (v *FeatureVector) Names() []string { return append([]string(nil), v.names...) }

func (v *FeatureVector) Values() []float64 { return append([]float64(nil), v.values...) }

func (v *FeatureVector) Get(name string) (float64, bool) {
	i, ok := v.index[name]
	if !ok {
		return 0, false
	}
	return v.values[i], true
}

func (v *FeatureVector) Index(name string) int {
	if i, ok := v.index[name]; ok {
		return i
	}
	return -1
}

// At returns the i-th value.
func (v *FeatureVector) At(i int) float64 { return v.values[i] }

// WithValues returns a vector with the same names and new values.
func (v *FeatureVector) WithValues(values []float64) (*FeatureVector, error) {
	if len(values) != len(v.names) {
		return nil, fmt.Errorf("feature vector has %d names and %d values", len(v.names), len(values))
	}
	return &FeatureVector{
		schemaVersion: v.schemaVersion,
		names:         v.names,
		values:        append([]float64(nil), values...),
		index:         v.index,
	}, nil
}

// Map returns the vector as name -> value.
func (v *FeatureVector) Map() map[string]float64 {
	out := make(map[string]float64, len(v.names))
	for i, n := range v.names {
		out[n] = v.values[i]
	}
	return out
}

// SameColumns reports the first position at which names differ from the
// vector's columns, or -1 when both sequences are identical.
func (v *FeatureVector) SameColumns(names []string) int {
	n := len(names)
	if len(v.names) > n {
		n = len(v.names)
	}
	for i := 0; i < n; i++ {
		if i >= len(names) || i >= len(v.names) || names[i] != v.names[i] {
			return i
		}
	}
	return -1
}
