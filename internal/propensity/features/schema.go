package features

import (
	"fmt"
	"sort"

	apperrors "propensity-scoring/internal/common/errors"
)

const (
	VersionBase    = "base/v1"
	VersionDerived = "derived/v2"
)

const (
	ColAge                 = "umur"
	ColIncome              = "monthly_income"
	ColPayroll             = "payroll"
	ColGenderMale          = "gender_MALE"
	ColMaritalSingle       = "marital_status_Single"
	ColActivityInactive    = "transaction_activity_Inactive"
	ColIncomePerAge        = "income_per_age"
	ColYoungRich           = "young_rich_flag"
	ColNumProductsOwned    = "num_products_owned"
	ColHasMultipleProducts = "has_multiple_products"
	ColIncomeBucket        = "income_bucket"
	ColAgeBucket           = "age_bucket"
	ColActivityNum         = "transaction_activity_num"
	ColIncomeXActivity     = "income_x_activity"

	SegmentPrefix = "categorysegmen_"
)

// Schema is a declared feature layout. Columns fixes both the name set and
// the order handed to the scaler and estimators.
type Schema struct {
	Version string   `json:"version" yaml:"version"`
	Columns []string `json:"columns" yaml:"columns"`
	Numeric []string `json:"numeric" yaml:"numeric"`
}

var segmentColumns = []string{
	SegmentPrefix + "BUMN",
	SegmentPrefix + "Lembaga Negara",
	SegmentPrefix + "Non Target Market",
	SegmentPrefix + "Pendidikan",
	SegmentPrefix + "Pensiun",
	SegmentPrefix + "RS",
	SegmentPrefix + "Swasta",
}

var registry = map[string]*Schema{
	VersionBase: {
		Version: VersionBase,
		Columns: concat([]string{
			ColAge, ColIncome, ColPayroll,
			ColGenderMale, ColMaritalSingle, ColActivityInactive,
		}, segmentColumns),
		Numeric: []string{ColAge, ColIncome},
	},
	VersionDerived: {
		Version: VersionDerived,
		Columns: concat([]string{
			ColAge, ColIncome, ColPayroll,
			ColIncomePerAge, ColYoungRich, ColNumProductsOwned, ColHasMultipleProducts,
			ColIncomeBucket, ColAgeBucket, ColActivityNum, ColIncomeXActivity,
			ColGenderMale, ColMaritalSingle, ColActivityInactive,
		}, segmentColumns),
		Numeric: []string{
			ColAge, ColIncome, ColIncomePerAge, ColIncomeXActivity,
			ColNumProductsOwned, ColHasMultipleProducts, ColIncomeBucket, ColAgeBucket,
		},
	},
}

// Lookup returns a copy of the registered schema for version.
func Lookup(version string) (*Schema, error) {
	s, ok := registry[version]
	if !ok {
		return nil, apperrors.NewSchemaMismatchError("feature builder",
			fmt.Sprintf("unknown feature schema version %q", version))
	}
	return s.clone(), nil
}

// Versions lists registered schema versions.
func Versions() []string {
	out := make([]string, 0, len(registry))
	for v := range registry {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Verify checks that columns equals the schema's declared sequence.
func (s *Schema) Verify(component string, columns []string) error {
	if len(columns) != len(s.Columns) {
		return apperrors.NewSchemaMismatchError(component,
			fmt.Sprintf("schema %s declares %d columns, got %d", s.Version, len(s.Columns), len(columns)))
	}
	for i := range columns {
		if columns[i] != s.Columns[i] {
			return apperrors.NewSchemaMismatchError(component,
				fmt.Sprintf("schema %s column %d is %q, got %q", s.Version, i, s.Columns[i], columns[i]))
		}
	}
	return nil
}

func (s *Schema) clone() *Schema {
	return &Schema{
		Version: s.Version,
		Columns: append([]string(nil), s.Columns...),
		Numeric: append([]string(nil), s.Numeric...),
	}
}

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
