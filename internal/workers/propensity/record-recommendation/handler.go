// internal/workers/propensity/record-recommendation/handler.go
package recordrecommendation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"propensity-scoring/internal/common/camunda"
	apperrors "propensity-scoring/internal/common/errors"
	"propensity-scoring/internal/common/logger"
	"propensity-scoring/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	TaskType = "record-recommendation"
)

const insertRecommendation = `
	INSERT INTO customer_products (
		id, customer_id, request_id, product, product_order,
		score, schema_version, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (request_id, product) DO NOTHING`

type Handler struct {
	config    *Config
	db        *sql.DB
	validate  *validator.Validate
	logger    logger.Logger
	responder *camunda.Responder
	now       func() time.Time
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		db:        db,
		validate:  validator.New(),
		logger:    log,
		responder: camunda.NewResponder(TaskType, log),
		now:       time.Now,
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

	// Exact zeros are masked products; they are not recommendations.
	rows := make([]models.RankedEntry, 0, len(input.Recommendations))
	for _, rec := range input.Recommendations {
		product, ok := models.ParseProduct(string(rec.Product))
		if !ok {
			return nil, apperrors.NewValidationError("recommendations.product",
				fmt.Sprintf("unknown product %q", rec.Product))
		}
		rec.Product = product
		if rec.Score == 0 {
			continue
		}
		rows = append(rows, rec)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Rank < rows[j].Rank })

	recordedAt := h.now().UTC()
	output := &Output{
		SkippedCount: len(input.Recommendations) - len(rows),
		RecordedAt:   recordedAt.Format(time.RFC3339),
	}
	if len(rows) == 0 {
		h.logger.Info("nothing to record", map[string]interface{}{
			"requestId":  input.RequestID,
			"customerId": input.CustomerID,
		})
		return output, nil
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewDatabaseConnectionFailedError(err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, rec := range rows {
		res, err := tx.ExecContext(ctx, insertRecommendation,
			uuid.New().String(),
			input.CustomerID,
			input.RequestID,
			string(rec.Product),
			rec.Rank,
			rec.Score,
			input.SchemaVersion,
			recordedAt,
		)
		if err != nil {
			return nil, apperrors.NewDatabaseInsertFailedError(err)
		}
		if n, err := res.RowsAffected(); err == nil {
			output.RecordedCount += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}

	h.logger.Info("recommendations recorded", map[string]interface{}{
		"requestId":     input.RequestID,
		"customerId":    input.CustomerID,
		"recordedCount": output.RecordedCount,
		"skippedCount":  output.SkippedCount,
	})
	return output, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
