package modelbank

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	apperrors "propensity-scoring/internal/common/errors"
	"propensity-scoring/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVersion = "base/v1"

var testFeatures = []string{"umur", "monthly_income", "payroll"}

func testVector(t *testing.T, values ...float64) *models.FeatureVector {
	t.Helper()
	v, err := models.NewFeatureVector(testVersion, testFeatures, values)
	require.NoError(t, err)
	return v
}

func constant(p float64) Estimator {
	return EstimatorFunc(func(*models.FeatureVector) (float64, error) { return p, nil })
}

type fixedMulti struct {
	probs []float64
}

func (f fixedMulti) PredictAll(*models.FeatureVector) ([]float64, error) { return f.probs, nil }
func (f fixedMulti) Outputs() int                                         { return len(f.probs) }

// ==========================
// LogisticEstimator
// ==========================

func TestLogisticEstimator_Predict(t *testing.T) {
	est, err := NewLogisticEstimator(LogisticSpec{
		SchemaVersion: testVersion,
		Features:      testFeatures,
		Intercept:     -1,
		Coefficients:  map[string]float64{"umur": 0.5, "payroll": 1},
	})
	require.NoError(t, err)

	p, err := est.Predict(testVector(t, 2, 100, 1))
	require.NoError(t, err)
	// z = -1 + 0.5*2 + 1*1 = 1
	assert.InDelta(t, 1/(1+math.Exp(-1)), p, 1e-12)

	p, err = est.Predict(testVector(t, 0, 0, 0))
	require.NoError(t, err)
	assert.InDelta(t, 1/(1+math.Exp(1)), p, 1e-12)
}

func TestLogisticEstimator_ExtremeLogitsStayInRange(t *testing.T) {
	est, err := NewLogisticEstimator(LogisticSpec{
		Features:     testFeatures,
		Coefficients: map[string]float64{"monthly_income": 1},
	})
	require.NoError(t, err)

	high, err := est.Predict(testVector(t, 0, 1e6, 0))
	require.NoError(t, err)
	low, err := est.Predict(testVector(t, 0, -1e6, 0))
	require.NoError(t, err)

	assert.Equal(t, 1.0, high)
	assert.Equal(t, 0.0, low)
	assert.False(t, math.IsNaN(high) || math.IsNaN(low))
}

func TestLogisticEstimator_ColumnMismatch(t *testing.T) {
	est, err := NewLogisticEstimator(LogisticSpec{Features: testFeatures})
	require.NoError(t, err)

	vec, err := models.NewFeatureVector(testVersion, []string{"monthly_income", "umur", "payroll"}, []float64{1, 2, 3})
	require.NoError(t, err)

	_, err = est.Predict(vec)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSchemaMismatch))
}

func TestNewLogisticEstimator_UnknownCoefficient(t *testing.T) {
	_, err := NewLogisticEstimator(LogisticSpec{
		Features:     testFeatures,
		Coefficients: map[string]float64{"credit_score": 1},
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSchemaMismatch))
}

// ==========================
// Packaging variants
// ==========================

func TestBanks_Interchangeable(t *testing.T) {
	products := []models.Product{models.ProductMitraguna, models.ProductGriya, models.ProductOto}
	probs := []float64{0.7, 0.2, 0.4}

	multi, err := NewMultiOutputBank(testVersion, products, fixedMulti{probs: probs})
	require.NoError(t, err)

	mapped, err := NewEstimatorMapBank(testVersion, map[models.Product]Estimator{
		models.ProductMitraguna: constant(0.7),
		models.ProductGriya:     constant(0.2),
		models.ProductOto:       constant(0.4),
	})
	require.NoError(t, err)

	vec := testVector(t, 1, 2, 3)
	for _, bank := range []ModelBank{multi, mapped} {
		assert.Equal(t, testVersion, bank.SchemaVersion())
		assert.ElementsMatch(t, products, bank.Products())
		for i, p := range products {
			got, err := bank.PredictProbability(p, vec)
			require.NoError(t, err)
			assert.Equal(t, probs[i], got, "%T %s", bank, p)
		}
	}
}

func TestEstimatorMapBank_ProductsInCanonicalOrder(t *testing.T) {
	bank, err := NewEstimatorMapBank(testVersion, map[models.Product]Estimator{
		models.ProductPrapensiun: constant(0.1),
		models.ProductGriya:      constant(0.1),
		models.ProductMitraguna:  constant(0.1),
	})
	require.NoError(t, err)
	assert.Equal(t, []models.Product{models.ProductMitraguna, models.ProductGriya, models.ProductPrapensiun}, bank.Products())
}

func TestBank_ClampsAndRejectsNaN(t *testing.T) {
	bank, err := NewEstimatorMapBank(testVersion, map[models.Product]Estimator{
		models.ProductGriya: constant(1.3),
		models.ProductOto:   constant(-0.2),
		models.ProductPensiun: EstimatorFunc(func(*models.FeatureVector) (float64, error) {
			return math.NaN(), nil
		}),
	})
	require.NoError(t, err)
	vec := testVector(t, 1, 2, 3)

	p, err := bank.PredictProbability(models.ProductGriya, vec)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p)

	p, err = bank.PredictProbability(models.ProductOto, vec)
	require.NoError(t, err)
	assert.Equal(t, 0.0, p)

	_, err = bank.PredictProbability(models.ProductPensiun, vec)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePredictionFailed))
}

func TestBank_UnknownProduct(t *testing.T) {
	bank, err := NewEstimatorMapBank(testVersion, map[models.Product]Estimator{models.ProductGriya: constant(0.5)})
	require.NoError(t, err)

	_, err = bank.PredictProbability(models.ProductOto, testVector(t, 1, 2, 3))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePredictionFailed))
}

func TestBank_VectorVersionSkew(t *testing.T) {
	bank, err := NewEstimatorMapBank(testVersion, map[models.Product]Estimator{models.ProductGriya: constant(0.5)})
	require.NoError(t, err)

	vec, err := models.NewFeatureVector("derived/v2", testFeatures, []float64{1, 2, 3})
	require.NoError(t, err)

	_, err = bank.PredictProbability(models.ProductGriya, vec)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSchemaMismatch))
}

func TestBank_EstimatorErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	bank, err := NewEstimatorMapBank(testVersion, map[models.Product]Estimator{
		models.ProductGriya: EstimatorFunc(func(*models.FeatureVector) (float64, error) { return 0, boom }),
	})
	require.NoError(t, err)

	_, err = bank.PredictProbability(models.ProductGriya, testVector(t, 1, 2, 3))
	assert.ErrorIs(t, err, boom)
}

func TestNewBanks_RejectVersionSkew(t *testing.T) {
	est, err := NewLogisticEstimator(LogisticSpec{SchemaVersion: "derived/v2", Features: testFeatures})
	require.NoError(t, err)

	_, err = NewEstimatorMapBank(testVersion, map[models.Product]Estimator{models.ProductGriya: est})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSchemaMismatch))

	multi, err := NewMultiLogistic([]LogisticSpec{{SchemaVersion: "derived/v2", Features: testFeatures}})
	require.NoError(t, err)
	_, err = NewMultiOutputBank(testVersion, []models.Product{models.ProductGriya}, multi)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSchemaMismatch))
}

func TestNewMultiOutputBank_OutputCountMismatch(t *testing.T) {
	_, err := NewMultiOutputBank(testVersion, []models.Product{models.ProductGriya}, fixedMulti{probs: []float64{0.1, 0.2}})
	assert.Error(t, err)
}

// ==========================
// Artifact directory
// ==========================

func writeArtifact(t *testing.T, dir string, product models.Product, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ArtifactFileName(product)), []byte(body), 0o600))
}

func TestLoadArtifactDir(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, models.ProductGriya, `
schema_version: base/v1
features: [umur, monthly_income, payroll]
intercept: 0
coefficients:
  payroll: 2
`)
	writeArtifact(t, dir, models.ProductOto, `
schema_version: base/v1
features: [umur, monthly_income, payroll]
intercept: 0
`)

	bank, err := LoadArtifactDir(dir, testVersion, []models.Product{models.ProductGriya, models.ProductOto})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "model_griya.yaml"), bank.File(models.ProductGriya))

	var _ ModelBank = bank

	p, err := bank.PredictProbability(models.ProductOto, testVector(t, 1, 2, 1))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p, 1e-12)

	p, err = bank.PredictProbability(models.ProductGriya, testVector(t, 1, 2, 1))
	require.NoError(t, err)
	assert.InDelta(t, 1/(1+math.Exp(-2)), p, 1e-12)
}

func TestLoadArtifactDir_MissingFile(t *testing.T) {
	_, err := LoadArtifactDir(t.TempDir(), testVersion, []models.Product{models.ProductGriya})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeArtifactLoadFailed))
}

func TestLoadArtifactDir_BadYAML(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, models.ProductGriya, "features: [unterminated")
	_, err := LoadArtifactDir(dir, testVersion, []models.Product{models.ProductGriya})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeArtifactLoadFailed))
}

func TestLoadArtifactDir_VersionSkew(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, models.ProductGriya, `
schema_version: derived/v2
features: [umur, monthly_income, payroll]
`)
	_, err := LoadArtifactDir(dir, testVersion, []models.Product{models.ProductGriya})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSchemaMismatch))
}
