// internal/workers/propensity/index-recommendation/handler.go
package indexrecommendation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"propensity-scoring/internal/common/camunda"
	apperrors "propensity-scoring/internal/common/errors"
	"propensity-scoring/internal/common/logger"
	"propensity-scoring/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/go-playground/validator/v10"
)

const (
	TaskType = "index-recommendation"
)

type Handler struct {
	config    *Config
	client    *elasticsearch.Client
	validate  *validator.Validate
	logger    logger.Logger
	responder *camunda.Responder
}

func NewHandler(config *Config, client *elasticsearch.Client, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		client:    client,
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

	doc := document{
		RequestID:       input.RequestID,
		CustomerID:      input.CustomerID,
		SchemaVersion:   input.SchemaVersion,
		ScoredAt:        input.ScoredAt,
		Recommendations: input.Recommendations,
		Scores:          input.Scores,
	}
	if doc.Recommendations == nil {
		doc.Recommendations = []models.RankedEntry{}
	}
	if len(input.Recommendations) > 0 {
		doc.TopProduct = string(input.Recommendations[0].Product)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	// Document ID is the request ID, so a replayed job overwrites its own document.
	res, err := h.client.Index(
		h.config.IndexName,
		bytes.NewReader(body),
		h.client.Index.WithDocumentID(input.RequestID),
		h.client.Index.WithContext(ctx),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.NewTimeoutError("elasticsearch", err)
		}
		return nil, apperrors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		cause := fmt.Errorf("%s: %s", res.Status(), bytes.TrimSpace(raw))
		if res.StatusCode == http.StatusBadRequest {
			return nil, apperrors.NewValidationError("document", cause.Error())
		}
		return nil, apperrors.NewIndexFailedError(h.config.IndexName, cause)
	}

	var ack struct {
		ID     string `json:"_id"`
		Result string `json:"result"`
	}
	if err := json.NewDecoder(res.Body).Decode(&ack); err != nil {
		return nil, apperrors.NewIndexFailedError(h.config.IndexName, fmt.Errorf("decode response: %w", err))
	}

	h.logger.Info("recommendation indexed", map[string]interface{}{
		"requestId": input.RequestID,
		"index":     h.config.IndexName,
		"result":    ack.Result,
	})

	return &Output{
		DocumentID: ack.ID,
		IndexName:  h.config.IndexName,
		Result:     ack.Result,
		IndexedAt:  time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
