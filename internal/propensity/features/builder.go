// Package features maps a normalized customer profile onto the ordered
// feature columns of a declared schema version.
package features

import (
	apperrors "propensity-scoring/internal/common/errors"
	"propensity-scoring/internal/models"
)

const youngRichIncome = 10_000_000

type Builder struct {
	bucketer Bucketer
}

// NewBuilder returns a Builder. A nil bucketer means DegenerateBucketer.
func NewBuilder(b Bucketer) *Builder {
	if b == nil {
		b = DegenerateBucketer{}
	}
	return &Builder{bucketer: b}
}

func (b *Builder) Bucketer() Bucketer { return b.bucketer }

// Build looks up schemaVersion and builds the profile's feature vector.
func (b *Builder) Build(p *models.CustomerProfile, schemaVersion string) (*models.FeatureVector, error) {
	schema, err := Lookup(schemaVersion)
	if err != nil {
		return nil, err
	}
	return b.BuildFor(p, schema)
}

// BuildFor emits exactly schema.Columns in order. Declared columns no rule
// produces are 0; produced columns the schema does not declare are dropped.
func (b *Builder) BuildFor(p *models.CustomerProfile, schema *Schema) (*models.FeatureVector, error) {
	if p == nil {
		return nil, apperrors.NewValidationError("", "profile is nil")
	}

	produced := b.produce(p)
	values := make([]float64, len(schema.Columns))
	for i, col := range schema.Columns {
		values[i] = produced[col]
	}

	vec, err := models.NewFeatureVector(schema.Version, schema.Columns, values)
	if err != nil {
		return nil, apperrors.NewSchemaMismatchError("feature builder", err.Error())
	}
	return vec, nil
}

func (b *Builder) produce(p *models.CustomerProfile) map[string]float64 {
	income := p.MonthlyIncome
	age := float64(p.Age)
	active := indicator(p.IsActive())
	owned := float64(p.ExistingProducts.Len())

	out := map[string]float64{
		ColAge:              age,
		ColIncome:           income,
		ColPayroll:          indicator(p.HasPayroll),
		ColGenderMale:       indicator(p.Gender == models.GenderMale),
		ColMaritalSingle:    indicator(p.MaritalStatus == models.MaritalSingle),
		ColActivityInactive: indicator(p.TransactionActivity == models.ActivityInactive),

		ColIncomePerAge:        income / (age + 1),
		ColYoungRich:           indicator(p.Age < 30 && income > youngRichIncome),
		ColNumProductsOwned:    owned,
		ColHasMultipleProducts: indicator(owned > 1),
		ColActivityNum:         active,
		ColIncomeXActivity:     income * active,
		ColIncomeBucket:        float64(b.bucketer.IncomeBucket(income)),
		ColAgeBucket:           float64(b.bucketer.AgeBucket(p.Age)),
	}

	// Unknown segments leave every indicator at zero.
	for _, seg := range models.KnownSegments {
		out[SegmentPrefix+string(seg)] = indicator(p.CategorySegment == seg)
	}
	return out
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
