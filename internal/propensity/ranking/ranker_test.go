package ranking

import (
	"encoding/json"
	"testing"

	"propensity-scoring/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profile(payroll bool, owned ...models.Product) *models.CustomerProfile {
	return &models.CustomerProfile{
		Age:                 35,
		MonthlyIncome:       8_000_000,
		HasPayroll:          payroll,
		TransactionActivity: models.ActivityActive,
		ExistingProducts:    models.NewProductSet(owned...),
	}
}

func fullScores() models.ScoreMap {
	return models.ScoreMap{
		models.ProductMitraguna:   0.81,
		models.ProductHasanahCard: 0.35,
		models.ProductGriya:       0.64,
		models.ProductOto:         0.12,
		models.ProductPensiun:     0.05,
		models.ProductPrapensiun:  0.22,
	}
}

func TestRank_TopThreeDescending(t *testing.T) {
	ranked := Rank(fullScores(), profile(true))

	require.Len(t, ranked, 3)
	assert.Equal(t, []models.Product{models.ProductMitraguna, models.ProductGriya, models.ProductHasanahCard}, ranked.Products())
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
	}
	assert.Equal(t, []int{1, 2, 3}, []int{ranked[0].Rank, ranked[1].Rank, ranked[2].Rank})
}

func TestRank_OwnedProductMasked(t *testing.T) {
	r := NewRanker(3, models.PayrollProduct)
	ranked, masked := r.Rank(fullScores(), profile(true, models.ProductGriya))

	assert.Equal(t, 0.0, masked[models.ProductGriya])
	assert.Len(t, masked, 6, "masked products are kept, not dropped")
	assert.NotContains(t, ranked.Products(), models.ProductGriya)
}

func TestRank_NoPayrollGatesMitraguna(t *testing.T) {
	tests := []struct {
		name  string
		owned []models.Product
	}{
		{"not owned", nil},
		{"also owned", []models.Product{models.ProductMitraguna}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranked, masked := NewRanker(3, "").Rank(fullScores(), profile(false, tt.owned...))
			assert.Equal(t, 0.0, masked[models.ProductMitraguna])
			assert.NotContains(t, ranked.Products(), models.ProductMitraguna)
		})
	}
}

func TestRank_PayrollKeepsMitraguna(t *testing.T) {
	_, masked := NewRanker(3, "").Rank(fullScores(), profile(true))
	assert.Equal(t, 0.81, masked[models.ProductMitraguna])
}

func TestRank_InputNotMutated(t *testing.T) {
	scores := fullScores()
	NewRanker(3, "").Rank(scores, profile(false, models.ProductGriya))
	assert.Equal(t, fullScores(), scores)
}

func TestRank_TieBreakByCanonicalOrder(t *testing.T) {
	scores := models.ScoreMap{
		models.ProductPrapensiun:  0.5,
		models.ProductOto:         0.5,
		models.ProductHasanahCard: 0.5,
		models.ProductGriya:       0.5,
	}

	for i := 0; i < 20; i++ {
		ranked := Rank(scores, profile(true))
		assert.Equal(t, []models.Product{models.ProductHasanahCard, models.ProductGriya, models.ProductOto}, ranked.Products())
	}
}

func TestRank_AllZeroStillReturnsTopN(t *testing.T) {
	ranked := Rank(fullScores(), profile(false,
		models.ProductHasanahCard, models.ProductGriya, models.ProductOto,
		models.ProductPensiun, models.ProductPrapensiun))

	require.Len(t, ranked, 3)
	assert.Equal(t, []models.Product{models.ProductMitraguna, models.ProductHasanahCard, models.ProductGriya}, ranked.Products())
	for _, e := range ranked {
		assert.Equal(t, 0.0, e.Score)
	}
}

func TestRank_FewerProductsThanTopN(t *testing.T) {
	ranked := Rank(models.ScoreMap{models.ProductOto: 0.3, models.ProductGriya: 0.6}, profile(true))
	assert.Equal(t, []models.Product{models.ProductGriya, models.ProductOto}, ranked.Products())
}

func TestRank_CustomTopN(t *testing.T) {
	ranked, _ := NewRanker(5, "").Rank(fullScores(), profile(true))
	assert.Len(t, ranked, 5)
}

func TestRankedResult_MarshalKeepsOrder(t *testing.T) {
	ranked := Rank(fullScores(), profile(true))
	data, err := json.Marshal(ranked)
	require.NoError(t, err)
	assert.Equal(t, `{"mitraguna":0.81,"griya":0.64,"hasanahcard":0.35}`, string(data))
}
