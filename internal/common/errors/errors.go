package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

type ErrorCode string

const (
	ErrCodeParseFailed      ErrorCode = "PARSE_ERROR"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	ErrCodeSchemaMismatch     ErrorCode = "SCHEMA_MISMATCH"
	ErrCodeArtifactLoadFailed ErrorCode = "ARTIFACT_LOAD_FAILED"
	ErrCodePredictionFailed   ErrorCode = "PREDICTION_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeCacheFailed              ErrorCode = "CACHE_FAILED"

	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeIndexFailed                   ErrorCode = "INDEX_FAILED"

	ErrCodePublishFailed ErrorCode = "PUBLISH_FAILED"

	ErrCodeTimeout  ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key to the error metadata and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func NewParseError(err error) *StandardError {
	return newError(ErrCodeParseFailed, "Job variables could not be parsed", err.Error(), false)
}

// NewValidationError reports a missing or mistyped request field.
func NewValidationError(field, details string) *StandardError {
	e := newError(ErrCodeValidationFailed, "Customer profile validation failed", details, false)
	if field != "" {
		e.WithMetadata("field", field)
	}
	return e
}

// NewSchemaMismatchError reports a feature vector that does not line up with
// the columns a scaler or estimator was fitted on.
func NewSchemaMismatchError(component, details string) *StandardError {
	return newError(ErrCodeSchemaMismatch,
		fmt.Sprintf("Feature schema mismatch in %s", component), details, false)
}

func NewArtifactLoadError(path string, err error) *StandardError {
	return newError(ErrCodeArtifactLoadFailed, "Model artifact could not be loaded",
		fmt.Sprintf("path: %s, error: %v", path, err), false)
}

func NewPredictionError(product string, err error) *StandardError {
	return newError(ErrCodePredictionFailed, "Propensity estimation failed",
		fmt.Sprintf("product: %s, error: %v", product, err), false)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert operation failed", err.Error(), true)
}

func NewCacheError(op string, err error) *StandardError {
	return newError(ErrCodeCacheFailed, "Result cache operation failed",
		fmt.Sprintf("op: %s, error: %v", op, err), true)
}

func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeElasticsearchConnectionFailed, "Elasticsearch connection error", err.Error(), true)
}

func NewIndexFailedError(indexName string, err error) *StandardError {
	return newError(ErrCodeIndexFailed, "Recommendation document could not be indexed",
		fmt.Sprintf("indexName: %s, error: %v", indexName, err), true)
}

func NewPublishError(channel string, err error) *StandardError {
	return newError(ErrCodePublishFailed, "Recommendation notification failed",
		fmt.Sprintf("channel: %s, error: %v", channel, err), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// AsStandardError unwraps err into a *StandardError when one is in the chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeIndexFailed,
		ErrCodePublishFailed:
		return 3

	case ErrCodeTimeout, ErrCodeCacheFailed:
		return 2

	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"errorCategory":     GetErrorCategory(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if field, ok := stdErr.Metadata["field"]; ok {
		vars["errorField"] = field
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "PARSE"):
		return "VALIDATION"
	case strings.Contains(codeStr, "SCHEMA") || strings.Contains(codeStr, "ARTIFACT"):
		return "MODEL_ARTIFACT"
	case strings.Contains(codeStr, "PREDICTION"):
		return "SCORING"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "CACHE"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "PUBLISH"):
		return "NOTIFICATION"
	default:
		return "OTHER"
	}
}
