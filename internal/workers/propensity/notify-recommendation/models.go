// internal/workers/propensity/notify-recommendation/models.go
package notifyrecommendation

import "propensity-scoring/internal/models"

const (
	StatusSent    = "sent"
	StatusPartial = "partial"
	StatusSkipped = "skipped"
)

const EventType = "product.recommended"

type Input struct {
	RequestID       string               `json:"requestId" validate:"required"`
	CustomerID      string               `json:"customerId" validate:"required"`
	SchemaVersion   string               `json:"schemaVersion"`
	Recommendations []models.RankedEntry `json:"recommendations"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"`
	MessageID      string `json:"messageId,omitempty"`
	EmailSent      bool   `json:"emailSent"`
	SentAt         string `json:"sentAt"`
}

// message is the SNS payload.
type message struct {
	EventType       string               `json:"eventType"`
	NotificationID  string               `json:"notificationId"`
	RequestID       string               `json:"requestId"`
	CustomerID      string               `json:"customerId"`
	SchemaVersion   string               `json:"schemaVersion,omitempty"`
	TopProduct      string               `json:"topProduct"`
	Recommendations []models.RankedEntry `json:"recommendations"`
}
