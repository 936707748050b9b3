// Package ranking applies ownership masking and payroll gating to product
// scores and returns the top-N products.
package ranking

import (
	"sort"

	"propensity-scoring/internal/models"
)

const DefaultTopN = 3

type Ranker struct {
	topN           int
	payrollProduct models.Product
}

// NewRanker returns a Ranker. topN <= 0 falls back to DefaultTopN and an
// empty payrollProduct to models.PayrollProduct.
func NewRanker(topN int, payrollProduct models.Product) *Ranker {
	if topN <= 0 {
		topN = DefaultTopN
	}
	if payrollProduct == "" {
		payrollProduct = models.PayrollProduct
	}
	return &Ranker{topN: topN, payrollProduct: payrollProduct}
}

// Mask zeroes owned products, then the payroll product for customers
// without payroll. Masked products keep their entry. scores is not modified.
func (r *Ranker) Mask(scores models.ScoreMap, p *models.CustomerProfile) models.ScoreMap {
	out := scores.Clone()
	for product := range p.ExistingProducts {
		if _, ok := out[product]; ok {
			out[product] = 0
		}
	}
	if !p.HasPayroll {
		if _, ok := out[r.payrollProduct]; ok {
			out[r.payrollProduct] = 0
		}
	}
	return out
}

// Rank masks scores and returns at most topN products by descending score.
// Equal scores follow canonical product order. Zero scores are kept.
func (r *Ranker) Rank(scores models.ScoreMap, p *models.CustomerProfile) (models.RankedResult, models.ScoreMap) {
	masked := r.Mask(scores, p)

	entries := make(models.RankedResult, 0, len(masked))
	for product, score := range masked {
		entries = append(entries, models.RankedEntry{Product: product, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		pi, pj := entries[i].Product.Priority(), entries[j].Product.Priority()
		if pi != pj {
			return pi < pj
		}
		return entries[i].Product < entries[j].Product
	})

	if len(entries) > r.topN {
		entries = entries[:r.topN]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, masked
}

// Rank uses the default top-3 ranker.
func Rank(scores models.ScoreMap, p *models.CustomerProfile) models.RankedResult {
	ranked, _ := NewRanker(DefaultTopN, models.PayrollProduct).Rank(scores, p)
	return ranked
}
