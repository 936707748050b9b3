// Package profile turns a raw scoring request into a validated
// models.CustomerProfile.
package profile

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"

	apperrors "propensity-scoring/internal/common/errors"
	"propensity-scoring/internal/common/validation"
	"propensity-scoring/internal/models"

	"github.com/go-playground/validator/v10"
)

//go:embed request.schema.json
var requestSchemaJSON []byte

// RequestSchema returns the JSON schema a raw request must satisfy.
func RequestSchema() []byte {
	return append([]byte(nil), requestSchemaJSON...)
}

// Normalizer validates raw requests. It is immutable after construction and
// safe for concurrent use.
type Normalizer struct {
	schema   *validation.Schema
	validate *validator.Validate
}

func NewNormalizer() (*Normalizer, error) {
	schema, err := validation.Compile(requestSchemaJSON)
	if err != nil {
		return nil, err
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Normalizer{schema: schema, validate: v}, nil
}

var defaultNormalizer = func() *Normalizer {
	n, err := NewNormalizer()
	if err != nil {
		panic(fmt.Sprintf("profile: embedded request schema: %v", err))
	}
	return n
}()

// Normalize validates raw with the default Normalizer.
func Normalize(raw map[string]interface{}) (*models.CustomerProfile, error) {
	return defaultNormalizer.Normalize(raw)
}

// NormalizeJSON decodes and validates a JSON request body.
func NormalizeJSON(data []byte) (*models.CustomerProfile, error) {
	return defaultNormalizer.NormalizeJSON(data)
}

func (n *Normalizer) NormalizeJSON(data []byte) (*models.CustomerProfile, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.NewValidationError("", fmt.Sprintf("malformed JSON: %v", err))
	}
	raw, ok := doc.(map[string]interface{})
	if !ok {
		return nil, apperrors.NewValidationError("", "request must be a JSON object")
	}
	return n.Normalize(raw)
}

func (n *Normalizer) Normalize(raw map[string]interface{}) (*models.CustomerProfile, error) {
	if raw == nil {
		return nil, apperrors.NewValidationError("", "request is empty")
	}

	result, err := n.schema.Validate(raw)
	if err != nil {
		return nil, apperrors.NewValidationError("", err.Error())
	}
	if !result.Valid {
		return nil, apperrors.NewValidationError(result.Errors[0].Field, result.Error())
	}

	p := &models.CustomerProfile{
		Age:              int(math.Round(asFloat(raw["umur"]))),
		MonthlyIncome:    asFloat(raw["income"]),
		HasPayroll:       truthy(raw["payroll"]),
		Gender:           parseGender(raw["gender"].(string)),
		MaritalStatus:    parseMarital(asFloat(raw["marital_status"])),
		ExistingProducts: parseExisting(raw["existing_product"]),
	}

	activity, ok := parseActivity(raw["transaction_activity"].(string))
	if !ok {
		return nil, apperrors.NewValidationError("transaction_activity",
			fmt.Sprintf("transaction_activity must be Active or Inactive, got %q", raw["transaction_activity"]))
	}
	p.TransactionActivity = activity

	// Unknown segments are kept and yield all-zero indicator columns.
	p.CategorySegment, _ = models.ParseSegment(raw["category_segmen"].(string))

	if err := n.validate.Struct(p); err != nil {
		return nil, structError(err)
	}
	return p, nil
}

// asFloat reads a schema-checked JSON number. Go callers may pass ints.
func asFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	default:
		return 0
	}
}

func truthy(v interface{}) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return asFloat(v) != 0
}

func parseGender(s string) models.Gender {
	if strings.EqualFold(strings.TrimSpace(s), "male") {
		return models.GenderMale
	}
	return models.GenderOther
}

// marital_status 0 means single on the wire.
func parseMarital(v float64) models.MaritalStatus {
	if v == 0 {
		return models.MaritalSingle
	}
	return models.MaritalOther
}

func parseActivity(s string) (models.TransactionActivity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return models.ActivityActive, true
	case "inactive":
		return models.ActivityInactive, true
	default:
		return "", false
	}
}

// parseExisting accepts a scalar, a list or nothing. Blank entries are dropped.
func parseExisting(v interface{}) models.ProductSet {
	set := models.NewProductSet()
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		p, _ := models.ParseProduct(s)
		set[p] = struct{}{}
	}

	switch t := v.(type) {
	case string:
		add(t)
	case []string:
		for _, s := range t {
			add(s)
		}
	case []interface{}:
		for _, item := range t {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	}
	return set
}

func structError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return apperrors.NewValidationError("", err.Error())
	}
	fe := verrs[0]
	return apperrors.NewValidationError(fe.Field(),
		fmt.Sprintf("%s failed %q constraint (value %v)", fe.Field(), fe.Tag(), fe.Value()))
}
