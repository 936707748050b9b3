// internal/workers/propensity/score-product-propensity/models.go
package scoreproductpropensity

import "propensity-scoring/internal/models"

type Input struct {
	RequestID  string                 `json:"requestId,omitempty"`
	CustomerID string                 `json:"customerId,omitempty"`
	Profile    map[string]interface{} `json:"profile"`
}

type Output struct {
	RequestID       string               `json:"requestId"`
	CustomerID      string               `json:"customerId,omitempty"`
	SchemaVersion   string               `json:"schemaVersion"`
	Recommendations []models.RankedEntry `json:"recommendations"`
	Scores          models.ScoreMap      `json:"scores"`
	ScoredAt        string               `json:"scoredAt"`
	CacheHit        bool                 `json:"cacheHit"`
}

// cachedScore is what the score cache holds for one profile.
type cachedScore struct {
	SchemaVersion   string               `json:"schemaVersion"`
	Recommendations []models.RankedEntry `json:"recommendations"`
	Scores          models.ScoreMap      `json:"scores"`
	ScoredAt        string               `json:"scoredAt"`
}
