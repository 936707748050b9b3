// internal/workers/propensity/record-recommendation/models.go
package recordrecommendation

import "propensity-scoring/internal/models"

type Input struct {
	CustomerID      string               `json:"customerId" validate:"required"`
	RequestID       string               `json:"requestId" validate:"required"`
	SchemaVersion   string               `json:"schemaVersion" validate:"required"`
	Recommendations []models.RankedEntry `json:"recommendations" validate:"dive"`
}

type Output struct {
	RecordedCount int    `json:"recordedCount"`
	SkippedCount  int    `json:"skippedCount"`
	RecordedAt    string `json:"recordedAt"`
}
