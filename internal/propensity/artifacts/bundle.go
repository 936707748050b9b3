// Package artifacts loads a fitted model bundle: the feature schema it was
// trained against, the scaler, the per-product estimators and optional
// quantile bucket boundaries.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	apperrors "propensity-scoring/internal/common/errors"
	"propensity-scoring/internal/models"
	"propensity-scoring/internal/propensity/features"
	"propensity-scoring/internal/propensity/modelbank"
	"propensity-scoring/internal/propensity/scaling"

	"gopkg.in/yaml.v3"
)

const (
	PackagingMultiOutput  = "multi_output"
	PackagingEstimatorMap = "estimator_map"
	PackagingArtifactDir  = "artifact_dir"
)

// Bundle is a loaded, version-checked set of artifacts. It is immutable and
// may be shared by concurrent scoring calls.
type Bundle struct {
	Schema    *features.Schema
	Scaler    scaling.Scaler
	Bank      modelbank.ModelBank
	Bucketer  features.Bucketer
	Packaging string
	Source    string
}

type scaledColumns interface {
	Names() []string
}

// NewBundle checks that schema, scaler and bank were fitted for the same
// schema version and that the scaler covers exactly the numeric columns.
func NewBundle(schema *features.Schema, scaler scaling.Scaler, bank modelbank.ModelBank, bucketer features.Bucketer) (*Bundle, error) {
	if schema == nil || scaler == nil || bank == nil {
		return nil, apperrors.NewArtifactLoadError("", fmt.Errorf("bundle needs a schema, a scaler and a model bank"))
	}
	if scaler.SchemaVersion() != schema.Version {
		return nil, apperrors.NewSchemaMismatchError("bundle",
			fmt.Sprintf("scaler fitted for %s, schema is %s", scaler.SchemaVersion(), schema.Version))
	}
	if bank.SchemaVersion() != schema.Version {
		return nil, apperrors.NewSchemaMismatchError("bundle",
			fmt.Sprintf("model bank fitted for %s, schema is %s", bank.SchemaVersion(), schema.Version))
	}
	if sc, ok := scaler.(scaledColumns); ok {
		if err := sameSet(sc.Names(), schema.Numeric); err != nil {
			return nil, apperrors.NewSchemaMismatchError("bundle", "scaler columns: "+err.Error())
		}
	}
	if len(bank.Products()) == 0 {
		return nil, apperrors.NewArtifactLoadError("", fmt.Errorf("model bank has no products"))
	}
	if bucketer == nil {
		bucketer = features.DegenerateBucketer{}
	}
	return &Bundle{Schema: schema, Scaler: scaler, Bank: bank, Bucketer: bucketer}, nil
}

func sameSet(got, want []string) error {
	g := append([]string(nil), got...)
	w := append([]string(nil), want...)
	sort.Strings(g)
	sort.Strings(w)
	if len(g) != len(w) {
		return fmt.Errorf("have %v, want %v", got, want)
	}
	for i := range g {
		if g[i] != w[i] {
			return fmt.Errorf("have %v, want %v", got, want)
		}
	}
	return nil
}

// Manifest is the on-disk bundle description.
type Manifest struct {
	SchemaVersion string                            `yaml:"schema_version"`
	Columns       []string                          `yaml:"columns,omitempty"`
	Packaging     string                            `yaml:"packaging"`
	Products      []string                          `yaml:"products"`
	Scaler        ScalerParams                      `yaml:"scaler"`
	Estimators    map[string]modelbank.LogisticSpec `yaml:"estimators,omitempty"`
	Outputs       []modelbank.LogisticSpec          `yaml:"outputs,omitempty"`
	ModelDir      string                            `yaml:"model_dir,omitempty"`
	Buckets       *BucketEdges                      `yaml:"buckets,omitempty"`
}

type ScalerParams struct {
	SchemaVersion string    `yaml:"schema_version"`
	Names         []string  `yaml:"names"`
	Mean          []float64 `yaml:"mean"`
	Scale         []float64 `yaml:"scale"`
}

type BucketEdges struct {
	Income []float64 `yaml:"income"`
	Age    []float64 `yaml:"age"`
}

type options struct {
	modelDir       string
	expectedSchema string
}

type Option func(*options)

// WithModelDir overrides the manifest's model_dir.
func WithModelDir(dir string) Option {
	return func(o *options) { o.modelDir = dir }
}

// WithExpectedSchema fails loading unless the bundle declares version.
func WithExpectedSchema(version string) Option {
	return func(o *options) { o.expectedSchema = version }
}

// LoadBundle reads and assembles the bundle described by the manifest at path.
func LoadBundle(path string, opts ...Option) (*Bundle, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewArtifactLoadError(path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, apperrors.NewArtifactLoadError(path, fmt.Errorf("decode manifest: %w", err))
	}

	if o.modelDir != "" {
		m.ModelDir = o.modelDir
	}
	if m.ModelDir != "" && !filepath.IsAbs(m.ModelDir) {
		m.ModelDir = filepath.Join(filepath.Dir(path), m.ModelDir)
	}

	b, err := m.build(o.expectedSchema)
	if err != nil {
		if _, ok := apperrors.AsStandardError(err); ok {
			return nil, err
		}
		return nil, apperrors.NewArtifactLoadError(path, err)
	}
	b.Source = path
	return b, nil
}

func (m *Manifest) build(expectedSchema string) (*Bundle, error) {
	if expectedSchema != "" && m.SchemaVersion != expectedSchema {
		return nil, apperrors.NewSchemaMismatchError("bundle",
			fmt.Sprintf("bundle declares %s, expected %s", m.SchemaVersion, expectedSchema))
	}

	schema, err := features.Lookup(m.SchemaVersion)
	if err != nil {
		return nil, err
	}
	if len(m.Columns) > 0 {
		if err := schema.Verify("bundle", m.Columns); err != nil {
			return nil, err
		}
	}

	scalerVersion := m.Scaler.SchemaVersion
	if scalerVersion == "" {
		scalerVersion = m.SchemaVersion
	}
	scaler, err := scaling.NewStandardScaler(scalerVersion, schema.Columns, m.Scaler.Names, m.Scaler.Mean, m.Scaler.Scale)
	if err != nil {
		return nil, err
	}

	products, err := m.products()
	if err != nil {
		return nil, err
	}

	bank, err := m.bank(schema, products)
	if err != nil {
		return nil, err
	}

	var bucketer features.Bucketer = features.DegenerateBucketer{}
	if m.Buckets != nil {
		q, err := features.NewQuantileBucketer(m.Buckets.Income, m.Buckets.Age)
		if err != nil {
			return nil, err
		}
		bucketer = q
	}

	b, err := NewBundle(schema, scaler, bank, bucketer)
	if err != nil {
		return nil, err
	}
	b.Packaging = m.Packaging
	return b, nil
}

func (m *Manifest) products() ([]models.Product, error) {
	if len(m.Products) == 0 {
		return nil, fmt.Errorf("manifest lists no products")
	}
	out := make([]models.Product, 0, len(m.Products))
	for _, raw := range m.Products {
		p, ok := models.ParseProduct(raw)
		if !ok {
			return nil, fmt.Errorf("unknown product %q", raw)
		}
		out = append(out, p)
	}
	return out, nil
}

// withDefaults fills an inline spec's version and layout from the schema.
func withDefaults(spec modelbank.LogisticSpec, schema *features.Schema) modelbank.LogisticSpec {
	if spec.SchemaVersion == "" {
		spec.SchemaVersion = schema.Version
	}
	if len(spec.Features) == 0 {
		spec.Features = schema.Columns
	}
	return spec
}

func (m *Manifest) bank(schema *features.Schema, products []models.Product) (modelbank.ModelBank, error) {
	switch m.Packaging {
	case PackagingMultiOutput:
		specs := make([]modelbank.LogisticSpec, len(m.Outputs))
		for i, s := range m.Outputs {
			specs[i] = withDefaults(s, schema)
		}
		est, err := modelbank.NewMultiLogistic(specs)
		if err != nil {
			return nil, err
		}
		return modelbank.NewMultiOutputBank(schema.Version, products, est)

	case PackagingEstimatorMap:
		estimators := make(map[models.Product]modelbank.Estimator, len(products))
		for _, p := range products {
			spec, ok := m.Estimators[string(p)]
			if !ok {
				return nil, fmt.Errorf("no estimator for product %q", p)
			}
			est, err := modelbank.NewLogisticEstimator(withDefaults(spec, schema))
			if err != nil {
				return nil, fmt.Errorf("estimator %s: %w", p, err)
			}
			estimators[p] = est
		}
		return modelbank.NewEstimatorMapBank(schema.Version, estimators)

	case PackagingArtifactDir:
		if m.ModelDir == "" {
			return nil, fmt.Errorf("artifact_dir packaging needs model_dir")
		}
		return modelbank.LoadArtifactDir(m.ModelDir, schema.Version, products)

	default:
		return nil, fmt.Errorf("unknown packaging %q", m.Packaging)
	}
}
