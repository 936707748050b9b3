// internal/workers/propensity/index-recommendation/models.go
package indexrecommendation

import "propensity-scoring/internal/models"

type Input struct {
	RequestID       string               `json:"requestId" validate:"required"`
	CustomerID      string               `json:"customerId"`
	SchemaVersion   string               `json:"schemaVersion" validate:"required"`
	ScoredAt        string               `json:"scoredAt"`
	Recommendations []models.RankedEntry `json:"recommendations"`
	Scores          models.ScoreMap      `json:"scores"`
}

type Output struct {
	DocumentID string `json:"documentId"`
	IndexName  string `json:"indexName"`
	Result     string `json:"result"`
	IndexedAt  string `json:"indexedAt"`
}

// document is the indexed shape; see database.RecommendationMapping.
type document struct {
	RequestID       string               `json:"requestId"`
	CustomerID      string               `json:"customerId,omitempty"`
	SchemaVersion   string               `json:"schemaVersion"`
	ScoredAt        string               `json:"scoredAt,omitempty"`
	TopProduct      string               `json:"topProduct,omitempty"`
	Recommendations []models.RankedEntry `json:"recommendations"`
	Scores          models.ScoreMap      `json:"scores,omitempty"`
}
