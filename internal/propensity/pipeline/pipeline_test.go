package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	apperrors "propensity-scoring/internal/common/errors"
	"propensity-scoring/internal/common/logger"
	"propensity-scoring/internal/models"
	"propensity-scoring/internal/propensity/artifacts"
	"propensity-scoring/internal/propensity/features"
	"propensity-scoring/internal/propensity/modelbank"
	"propensity-scoring/internal/propensity/ranking"
	"propensity-scoring/internal/propensity/scaling"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBundle = "../../../configs/artifacts/bundle.yaml"

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func request() map[string]interface{} {
	return map[string]interface{}{
		"umur":                 35,
		"income":               8000000,
		"payroll":              1,
		"gender":               "Female",
		"marital_status":       1,
		"transaction_activity": "Active",
		"category_segmen":      "Swasta",
		"existing_product":     []interface{}{},
	}
}

func samplePipeline(t *testing.T) *Pipeline {
	t.Helper()
	bundle, err := artifacts.LoadBundle(sampleBundle)
	require.NoError(t, err)
	p, err := New(bundle, WithLogger(logger.NewTestLogger(t)), WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return p
}

// constantPipeline scores every product with p on the base schema.
func constantPipeline(t *testing.T, probs map[models.Product]float64) *Pipeline {
	t.Helper()
	schema, err := features.Lookup(features.VersionBase)
	require.NoError(t, err)
	scaler, err := scaling.NewStandardScaler(features.VersionBase, schema.Columns,
		schema.Numeric, []float64{40, 9_000_000}, []float64{10, 3_000_000})
	require.NoError(t, err)

	estimators := make(map[models.Product]modelbank.Estimator, len(probs))
	for product, prob := range probs {
		prob := prob
		estimators[product] = modelbank.EstimatorFunc(func(*models.FeatureVector) (float64, error) { return prob, nil })
	}
	bank, err := modelbank.NewEstimatorMapBank(features.VersionBase, estimators)
	require.NoError(t, err)

	bundle, err := artifacts.NewBundle(schema, scaler, bank, nil)
	require.NoError(t, err)
	p, err := New(bundle)
	require.NoError(t, err)
	return p
}

func uniform(prob float64) map[models.Product]float64 {
	out := make(map[models.Product]float64, len(models.CanonicalProducts))
	for _, p := range models.CanonicalProducts {
		out[p] = prob
	}
	return out
}

func TestScore_SampleProfile(t *testing.T) {
	p := samplePipeline(t)

	res, err := p.Score(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, features.VersionDerived, res.SchemaVersion)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, fixedNow, res.ScoredAt)

	require.Len(t, res.Scores, 6)
	for product, score := range res.Scores {
		assert.GreaterOrEqual(t, score, 0.0, product)
		assert.LessOrEqual(t, score, 1.0, product)
	}
	assert.Greater(t, res.Scores[models.ProductMitraguna], 0.0, "payroll customer keeps mitraguna")

	require.Len(t, res.Ranked, 3)
	for i := 1; i < len(res.Ranked); i++ {
		assert.GreaterOrEqual(t, res.Ranked[i-1].Score, res.Ranked[i].Score)
	}
}

func TestScore_OwnedProductExcluded(t *testing.T) {
	p := samplePipeline(t)
	req := request()
	req["existing_product"] = []interface{}{"griya"}

	res, err := p.Score(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 0.0, res.Scores[models.ProductGriya])
	assert.NotContains(t, res.Ranked.Products(), models.ProductGriya)
}

func TestScore_NoPayrollZeroesMitraguna(t *testing.T) {
	for _, owned := range []interface{}{nil, "mitraguna", []interface{}{"oto"}} {
		req := request()
		req["payroll"] = 0
		if owned != nil {
			req["existing_product"] = owned
		}

		res, err := samplePipeline(t).Score(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, 0.0, res.Scores[models.ProductMitraguna], "owned=%v", owned)
	}
}

func TestScore_MaskOverridesEstimator(t *testing.T) {
	p := constantPipeline(t, uniform(0.9))
	req := request()
	req["payroll"] = false
	req["existing_product"] = "griya"

	res, err := p.Score(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 0.0, res.Scores[models.ProductGriya])
	assert.Equal(t, 0.0, res.Scores[models.ProductMitraguna])
	assert.Equal(t, 0.9, res.Scores[models.ProductOto])
	assert.Equal(t, []models.Product{models.ProductHasanahCard, models.ProductOto, models.ProductPensiun}, res.Ranked.Products())
}

func TestScore_AllMaskedIsNotAnError(t *testing.T) {
	p := constantPipeline(t, uniform(0.9))
	req := request()
	req["payroll"] = 0
	req["existing_product"] = []interface{}{"hasanahcard", "griya", "oto", "pensiun", "prapensiun"}

	res, err := p.Score(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Ranked, 3)
	for _, e := range res.Ranked {
		assert.Equal(t, 0.0, e.Score)
	}
}

func TestScore_UnknownSegmentCompletes(t *testing.T) {
	req := request()
	req["category_segmen"] = "Koperasi"

	res, err := samplePipeline(t).Score(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, res.Ranked, 3)
}

func TestScore_Idempotent(t *testing.T) {
	p := samplePipeline(t)
	ctx := ContextWithRequestID(context.Background(), "req-42")

	first, err := p.Score(ctx, request())
	require.NoError(t, err)
	second, err := p.Score(ctx, request())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "req-42", first.RequestID)
}

func TestScore_Concurrent(t *testing.T) {
	p := samplePipeline(t)
	ctx := ContextWithRequestID(context.Background(), "shared")
	want, err := p.Score(ctx, request())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Result, 32)
	errs := make([]error, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.Score(ctx, request())
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, want, results[i])
	}
}

func TestScore_ValidationErrors(t *testing.T) {
	p := samplePipeline(t)

	missing := request()
	delete(missing, "income")
	_, err := p.Score(context.Background(), missing)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))

	_, err = p.ScoreJSON(context.Background(), []byte(`{"umur": 35,`))
	assert.Error(t, err)

	_, err = p.ScoreProfile(context.Background(), nil)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidationFailed))
}

func TestScoreJSON_ResponseOrder(t *testing.T) {
	p := constantPipeline(t, map[models.Product]float64{
		models.ProductMitraguna:   0.81,
		models.ProductHasanahCard: 0.35,
		models.ProductGriya:       0.64,
		models.ProductOto:         0.12,
		models.ProductPensiun:     0.05,
		models.ProductPrapensiun:  0.22,
	})
	body, err := json.Marshal(request())
	require.NoError(t, err)

	res, err := p.ScoreJSON(context.Background(), body)
	require.NoError(t, err)

	out, err := json.Marshal(res.Ranked)
	require.NoError(t, err)
	assert.Equal(t, `{"mitraguna":0.81,"griya":0.64,"hasanahcard":0.35}`, string(out))
}

func TestNew_CustomRanker(t *testing.T) {
	bundle, err := artifacts.LoadBundle(sampleBundle)
	require.NoError(t, err)
	p, err := New(bundle, WithRanker(ranking.NewRanker(6, "")))
	require.NoError(t, err)

	res, err := p.Score(context.Background(), request())
	require.NoError(t, err)
	assert.Len(t, res.Ranked, 6)
	assert.Equal(t, models.CanonicalProducts, p.Products())
}

func TestNew_RejectsSkewedBundle(t *testing.T) {
	schema, err := features.Lookup(features.VersionBase)
	require.NoError(t, err)
	scaler, err := scaling.NewStandardScaler(features.VersionBase, schema.Columns, schema.Numeric, []float64{0, 0}, []float64{1, 1})
	require.NoError(t, err)
	bank, err := modelbank.NewEstimatorMapBank(features.VersionDerived, map[models.Product]modelbank.Estimator{
		models.ProductGriya: modelbank.EstimatorFunc(func(*models.FeatureVector) (float64, error) { return 0.5, nil }),
	})
	require.NoError(t, err)

	_, err = New(&artifacts.Bundle{Schema: schema, Scaler: scaler, Bank: bank})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSchemaMismatch))

	_, err = New(nil)
	assert.Error(t, err)
}
