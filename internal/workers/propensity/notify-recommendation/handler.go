// internal/workers/propensity/notify-recommendation/handler.go
package notifyrecommendation

import (
	"bytes"
	"context"
	"encoding/json"
	"text/template"
	"time"

	awsclients "propensity-scoring/internal/common/aws"
	"propensity-scoring/internal/common/camunda"
	apperrors "propensity-scoring/internal/common/errors"
	"propensity-scoring/internal/common/logger"
	"propensity-scoring/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	TaskType = "notify-recommendation"
)

var emailBody = template.Must(template.New("rm-email").Parse(
	`New product recommendations for customer {{.CustomerID}} (request {{.RequestID}}):
{{range .Recommendations}}
  {{.Rank}}. {{.Product}}  {{printf "%.2f" .Score}}{{end}}

Scored with feature schema {{.SchemaVersion}}.
`))

type Handler struct {
	config    *Config
	sns       awsclients.Publisher
	ses       awsclients.Mailer
	validate  *validator.Validate
	logger    logger.Logger
	responder *camunda.Responder
}

// NewHandler builds the handler. mailer may be nil when email is disabled.
func NewHandler(config *Config, publisher awsclients.Publisher, mailer awsclients.Mailer, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		sns:       publisher,
		ses:       mailer,
		validate:  validator.New(),
		logger:    log,
		responder: camunda.NewResponder(TaskType, log),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", camunda.JobFields(job))

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.responder.Fail(client, job, apperrors.NewParseError(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.responder.Fail(client, job, err)
		return
	}

	h.responder.Complete(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewValidationError("input", "input cannot be nil")
	}
	if err := h.validate.Struct(input); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return nil, apperrors.NewValidationError(verrs[0].Field(), verrs[0].Error())
		}
		return nil, apperrors.NewValidationError("input", err.Error())
	}

	notificationID := uuid.New().String()
	sentAt := time.Now().UTC().Format(time.RFC3339)

	recs := positive(input.Recommendations)
	if len(recs) == 0 {
		h.logger.Info("no positive recommendation, skipping notification", map[string]interface{}{
			"requestId": input.RequestID,
		})
		return &Output{NotificationID: notificationID, Status: StatusSkipped, SentAt: sentAt}, nil
	}

	msg := message{
		EventType:       EventType,
		NotificationID:  notificationID,
		RequestID:       input.RequestID,
		CustomerID:      input.CustomerID,
		SchemaVersion:   input.SchemaVersion,
		TopProduct:      string(recs[0].Product),
		Recommendations: recs,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	published, err := h.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(h.config.TopicARN),
		Subject:  aws.String("Product recommendation"),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"eventType":  stringAttribute(EventType),
			"customerId": stringAttribute(input.CustomerID),
			"topProduct": stringAttribute(msg.TopProduct),
		},
	})
	if err != nil {
		return nil, apperrors.NewPublishError("sns", err)
	}

	output := &Output{
		NotificationID: notificationID,
		Status:         StatusSent,
		MessageID:      aws.ToString(published.MessageId),
		SentAt:         sentAt,
	}

	if h.config.EmailEnabled && h.ses != nil && h.config.RMEmail != "" {
		if err := h.sendEmail(ctx, input, recs); err != nil {
			h.logger.Error("email send failed", map[string]interface{}{
				"error":     apperrors.NewPublishError("ses", err),
				"requestId": input.RequestID,
			})
			output.Status = StatusPartial
		} else {
			output.EmailSent = true
		}
	}

	h.logger.Info("recommendation published", map[string]interface{}{
		"requestId":  input.RequestID,
		"messageId":  output.MessageID,
		"topProduct": msg.TopProduct,
		"emailSent":  output.EmailSent,
	})
	return output, nil
}

func (h *Handler) sendEmail(ctx context.Context, input *Input, recs []models.RankedEntry) error {
	var body bytes.Buffer
	err := emailBody.Execute(&body, struct {
		*Input
		Recommendations []models.RankedEntry
	}{input, recs})
	if err != nil {
		return err
	}

	_, err = h.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: []string{h.config.RMEmail},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String("Product recommendations for " + input.CustomerID)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body.String())},
			},
		},
		Source: aws.String(h.config.FromEmail),
	})
	return err
}

// positive drops masked products, keeping rank order.
func positive(recs []models.RankedEntry) []models.RankedEntry {
	out := make([]models.RankedEntry, 0, len(recs))
	for _, r := range recs {
		if r.Score > 0 {
			out = append(out, r)
		}
	}
	return out
}

func stringAttribute(v string) snstypes.MessageAttributeValue {
	return snstypes.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(v),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
