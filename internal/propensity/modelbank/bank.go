// Package modelbank exposes per-product propensity estimators behind one
// interface, whatever the packaging of the fitted models.
package modelbank

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	apperrors "propensity-scoring/internal/common/errors"
	"propensity-scoring/internal/models"

	"gopkg.in/yaml.v3"
)

// ModelBank returns a propensity in [0,1] for a product. Implementations
// are read-only after construction and safe for concurrent use.
type ModelBank interface {
	PredictProbability(product models.Product, vec *models.FeatureVector) (float64, error)
	Products() []models.Product
	SchemaVersion() string
}

// versioned is implemented by estimators that know the schema they were fitted on.
type versioned interface {
	SchemaVersion() string
}

func checkVersion(bankVersion string, est interface{}, what string) error {
	v, ok := est.(versioned)
	if !ok || v.SchemaVersion() == "" || v.SchemaVersion() == bankVersion {
		return nil
	}
	return apperrors.NewSchemaMismatchError("model bank",
		fmt.Sprintf("%s fitted for %s, bank declares %s", what, v.SchemaVersion(), bankVersion))
}

func checkVector(bankVersion string, vec *models.FeatureVector) error {
	if vec.SchemaVersion() != bankVersion {
		return apperrors.NewSchemaMismatchError("model bank",
			fmt.Sprintf("bank expects %s, vector built for %s", bankVersion, vec.SchemaVersion()))
	}
	return nil
}

func clamp(product models.Product, p float64) (float64, error) {
	if math.IsNaN(p) {
		return 0, apperrors.NewPredictionError(string(product), fmt.Errorf("estimator returned NaN"))
	}
	return math.Max(0, math.Min(1, p)), nil
}

func unknownProduct(product models.Product) error {
	return apperrors.NewPredictionError(string(product), fmt.Errorf("no estimator for product"))
}

// ==========================
// Multi-output packaging
// ==========================

// MultiOutputBank maps products onto the outputs of one estimator by position.
type MultiOutputBank struct {
	schemaVersion string
	products      []models.Product
	index         map[models.Product]int
	estimator     MultiOutputEstimator
}

func NewMultiOutputBank(schemaVersion string, products []models.Product, est MultiOutputEstimator) (*MultiOutputBank, error) {
	if est.Outputs() != len(products) {
		return nil, fmt.Errorf("estimator has %d outputs for %d products", est.Outputs(), len(products))
	}
	if err := checkVersion(schemaVersion, est, "multi-output estimator"); err != nil {
		return nil, err
	}
	index := make(map[models.Product]int, len(products))
	for i, p := range products {
		if _, dup := index[p]; dup {
			return nil, fmt.Errorf("product %q listed twice", p)
		}
		index[p] = i
	}
	return &MultiOutputBank{
		schemaVersion: schemaVersion,
		products:      append([]models.Product(nil), products...),
		index:         index,
		estimator:     est,
	}, nil
}

func (b *MultiOutputBank) PredictProbability(product models.Product, vec *models.FeatureVector) (float64, error) {
	i, ok := b.index[product]
	if !ok {
		return 0, unknownProduct(product)
	}
	if err := checkVector(b.schemaVersion, vec); err != nil {
		return 0, err
	}
	probs, err := b.estimator.PredictAll(vec)
	if err != nil {
		return 0, err
	}
	return clamp(product, probs[i])
}

func (b *MultiOutputBank) Products() []models.Product {
	return append([]models.Product(nil), b.products...)
}

func (b *MultiOutputBank) SchemaVersion() string { return b.schemaVersion }

// ==========================
// Per-product estimator map
// ==========================

// EstimatorMapBank holds one estimator per product.
type EstimatorMapBank struct {
	schemaVersion string
	products      []models.Product
	estimators    map[models.Product]Estimator
}

// NewEstimatorMapBank lists products in canonical order when they are known.
func NewEstimatorMapBank(schemaVersion string, estimators map[models.Product]Estimator) (*EstimatorMapBank, error) {
	if len(estimators) == 0 {
		return nil, fmt.Errorf("estimator map is empty")
	}
	set := models.NewProductSet()
	copied := make(map[models.Product]Estimator, len(estimators))
	for p, est := range estimators {
		if est == nil {
			return nil, fmt.Errorf("estimator for %q is nil", p)
		}
		if err := checkVersion(schemaVersion, est, fmt.Sprintf("estimator for %s", p)); err != nil {
			return nil, err
		}
		set[p] = struct{}{}
		copied[p] = est
	}
	return &EstimatorMapBank{
		schemaVersion: schemaVersion,
		products:      set.Sorted(),
		estimators:    copied,
	}, nil
}

func (b *EstimatorMapBank) PredictProbability(product models.Product, vec *models.FeatureVector) (float64, error) {
	est, ok := b.estimators[product]
	if !ok {
		return 0, unknownProduct(product)
	}
	if err := checkVector(b.schemaVersion, vec); err != nil {
		return 0, err
	}
	p, err := est.Predict(vec)
	if err != nil {
		return 0, err
	}
	return clamp(product, p)
}

func (b *EstimatorMapBank) Products() []models.Product {
	return append([]models.Product(nil), b.products...)
}

func (b *EstimatorMapBank) SchemaVersion() string { return b.schemaVersion }

// ==========================
// Per-product artifact files
// ==========================

// ArtifactDirBank loads model_<product>.yaml files from a directory once and
// serves them like an EstimatorMapBank.
type ArtifactDirBank struct {
	*EstimatorMapBank
	dir   string
	files map[models.Product]string
}

func ArtifactFileName(product models.Product) string {
	return fmt.Sprintf("model_%s.yaml", product)
}

func LoadArtifactDir(dir, schemaVersion string, products []models.Product) (*ArtifactDirBank, error) {
	if len(products) == 0 {
		return nil, apperrors.NewArtifactLoadError(dir, fmt.Errorf("no products to load"))
	}

	estimators := make(map[models.Product]Estimator, len(products))
	files := make(map[models.Product]string, len(products))
	for _, p := range products {
		path := filepath.Join(dir, ArtifactFileName(p))
		est, err := loadLogisticFile(path)
		if err != nil {
			if _, ok := apperrors.AsStandardError(err); ok {
				return nil, err
			}
			return nil, apperrors.NewArtifactLoadError(path, err)
		}
		estimators[p] = est
		files[p] = path
	}

	bank, err := NewEstimatorMapBank(schemaVersion, estimators)
	if err != nil {
		return nil, err
	}
	return &ArtifactDirBank{EstimatorMapBank: bank, dir: dir, files: files}, nil
}

func (b *ArtifactDirBank) Dir() string { return b.dir }

func (b *ArtifactDirBank) File(product models.Product) string { return b.files[product] }

func loadLogisticFile(path string) (*LogisticEstimator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var spec LogisticSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return NewLogisticEstimator(spec)
}
