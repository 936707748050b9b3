// internal/workers/propensity/score-product-propensity/handler.go
package scoreproductpropensity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"propensity-scoring/internal/common/camunda"
	apperrors "propensity-scoring/internal/common/errors"
	"propensity-scoring/internal/common/logger"
	"propensity-scoring/internal/common/metrics"
	"propensity-scoring/internal/common/observability"
	"propensity-scoring/internal/models"
	"propensity-scoring/internal/propensity/pipeline"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

const (
	TaskType = "score-product-propensity"
)

// Scorer is the part of the pipeline the worker needs.
type Scorer interface {
	Score(ctx context.Context, raw map[string]interface{}) (*pipeline.Result, error)
	SchemaVersion() string
}

type Handler struct {
	config    *Config
	scorer    Scorer
	redis     *redis.Client
	obs       *observability.Observability
	logger    logger.Logger
	responder *camunda.Responder
}

// NewHandler builds the handler. rdb may be nil, which disables caching.
func NewHandler(config *Config, scorer Scorer, rdb *redis.Client, obs *observability.Observability, log logger.Logger) *Handler {
	if obs == nil {
		obs = observability.Noop()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		scorer:    scorer,
		redis:     rdb,
		obs:       obs,
		logger:    log,
		responder: camunda.NewResponder(TaskType, log),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", camunda.JobFields(job))
	start := time.Now()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.responder.Fail(client, job, apperrors.NewParseError(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()
	ctx, span := h.obs.StartSpan(ctx, TaskType, attribute.Int64("job_key", job.Key))
	defer span.End()

	output, err := h.execute(ctx, &input)
	if err != nil {
		span.RecordError(err)
		h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "failed")
		h.obs.RecordJobProcessed(ctx, TaskType, "failed")
		h.responder.Fail(client, job, err)
		return
	}

	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "completed")
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.responder.Complete(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.Profile == nil {
		return nil, apperrors.NewValidationError("profile", "profile is required")
	}

	requestID := input.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	key, err := h.cacheKey(input.Profile)
	if err != nil {
		return nil, apperrors.NewParseError(err)
	}

	cached, cacheUp := h.lookup(ctx, key)
	if cached != nil {
		return &Output{
			RequestID:       requestID,
			CustomerID:      input.CustomerID,
			SchemaVersion:   cached.SchemaVersion,
			Recommendations: cached.Recommendations,
			Scores:          cached.Scores,
			ScoredAt:        cached.ScoredAt,
			CacheHit:        true,
		}, nil
	}

	result, err := h.scorer.Score(pipeline.ContextWithRequestID(ctx, requestID), input.Profile)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, apperrors.NewTimeoutError(TaskType, ctx.Err())
	}

	entry := &cachedScore{
		SchemaVersion:   result.SchemaVersion,
		Recommendations: []models.RankedEntry(result.Ranked),
		Scores:          result.Scores,
		ScoredAt:        result.ScoredAt.Format(time.RFC3339),
	}
	if cacheUp {
		h.store(ctx, key, entry)
	}

	h.logger.Info("profile scored", map[string]interface{}{
		"requestId":     requestID,
		"schemaVersion": result.SchemaVersion,
		"top":           result.Ranked.Products(),
	})

	return &Output{
		RequestID:       requestID,
		CustomerID:      input.CustomerID,
		SchemaVersion:   entry.SchemaVersion,
		Recommendations: entry.Recommendations,
		Scores:          entry.Scores,
		ScoredAt:        entry.ScoredAt,
	}, nil
}

// cacheKey hashes the raw profile. encoding/json sorts map keys, so equal
// profiles give equal keys.
func (h *Handler) cacheKey(profile map[string]interface{}) (string, error) {
	data, err := json.Marshal(profile)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return h.config.KeyPrefix + h.scorer.SchemaVersion() + ":" + hex.EncodeToString(sum[:]), nil
}

// lookup returns a cached score if present. The second result is false when
// the cache is off or unreachable.
func (h *Handler) lookup(ctx context.Context, key string) (*cachedScore, bool) {
	if !h.config.CacheEnabled || h.redis == nil {
		return nil, false
	}

	val, err := h.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, true
	}
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		h.logger.Warn("score cache unavailable", map[string]interface{}{
			"error": apperrors.NewCacheError("get", err),
		})
		return nil, false
	}

	var cached cachedScore
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		h.logger.Warn("discarding unreadable cache entry", map[string]interface{}{"key": key, "error": err})
		return nil, true
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return &cached, true
}

func (h *Handler) store(ctx context.Context, key string, entry *cachedScore) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := h.redis.Set(ctx, key, data, h.config.CacheTTL).Err(); err != nil {
		h.logger.Warn("failed to cache score", map[string]interface{}{
			"error": apperrors.NewCacheError("set", err),
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
