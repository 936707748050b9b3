// Package pipeline scores one customer profile: normalize, build features,
// scale, predict every product and rank.
package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	apperrors "propensity-scoring/internal/common/errors"
	"propensity-scoring/internal/common/logger"
	"propensity-scoring/internal/common/metrics"
	"propensity-scoring/internal/common/observability"
	"propensity-scoring/internal/models"
	"propensity-scoring/internal/propensity/artifacts"
	"propensity-scoring/internal/propensity/features"
	"propensity-scoring/internal/propensity/profile"
	"propensity-scoring/internal/propensity/ranking"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type Result struct {
	RequestID     string              `json:"requestId"`
	SchemaVersion string              `json:"schemaVersion"`
	Scores        models.ScoreMap     `json:"scores"`
	Ranked        models.RankedResult `json:"ranked"`
	ScoredAt      time.Time           `json:"scoredAt"`
}

// Pipeline holds a loaded bundle for its lifetime. It has no mutable state
// and may be shared across goroutines.
type Pipeline struct {
	bundle     *artifacts.Bundle
	builder    *features.Builder
	normalizer *profile.Normalizer
	ranker     *ranking.Ranker
	logger     logger.Logger
	obs        *observability.Observability
	now        func() time.Time
}

type Option func(*Pipeline)

func WithRanker(r *ranking.Ranker) Option {
	return func(p *Pipeline) { p.ranker = r }
}

func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func WithObservability(o *observability.Observability) Option {
	return func(p *Pipeline) { p.obs = o }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

type requestIDKey struct{}

// ContextWithRequestID makes Score reuse id instead of generating one.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

func New(bundle *artifacts.Bundle, opts ...Option) (*Pipeline, error) {
	if bundle == nil {
		return nil, apperrors.NewArtifactLoadError("", fmt.Errorf("pipeline needs a bundle"))
	}
	// Bundles assembled by hand skip LoadBundle's pairing checks.
	if _, err := artifacts.NewBundle(bundle.Schema, bundle.Scaler, bundle.Bank, bundle.Bucketer); err != nil {
		return nil, err
	}

	normalizer, err := profile.NewNormalizer()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	p := &Pipeline{
		bundle:     bundle,
		builder:    features.NewBuilder(bundle.Bucketer),
		normalizer: normalizer,
		ranker:     ranking.NewRanker(ranking.DefaultTopN, models.PayrollProduct),
		logger:     logger.NewNoOpLogger(),
		obs:        observability.Noop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Pipeline) SchemaVersion() string { return p.bundle.Schema.Version }

func (p *Pipeline) Products() []models.Product { return p.bundle.Bank.Products() }

// Score validates a raw request and scores it.
func (p *Pipeline) Score(ctx context.Context, raw map[string]interface{}) (*Result, error) {
	start := p.now()
	prof, err := p.normalizer.Normalize(raw)
	p.obs.RecordStage(ctx, "normalize", p.now().Sub(start))
	if err != nil {
		metrics.PropensityScores.WithLabelValues(p.SchemaVersion(), "invalid").Inc()
		return nil, err
	}
	return p.ScoreProfile(ctx, prof)
}

// ScoreJSON is Score for an encoded request body.
func (p *Pipeline) ScoreJSON(ctx context.Context, data []byte) (*Result, error) {
	prof, err := p.normalizer.NormalizeJSON(data)
	if err != nil {
		metrics.PropensityScores.WithLabelValues(p.SchemaVersion(), "invalid").Inc()
		return nil, err
	}
	return p.ScoreProfile(ctx, prof)
}

// ScoreProfile scores an already validated profile.
func (p *Pipeline) ScoreProfile(ctx context.Context, prof *models.CustomerProfile) (*Result, error) {
	if prof == nil {
		return nil, apperrors.NewValidationError("profile", "profile is required")
	}

	version := p.SchemaVersion()
	id := requestID(ctx)
	ctx, span := p.obs.StartSpan(ctx, "propensity.score",
		attribute.String("request_id", id),
		attribute.String("schema_version", version),
	)
	defer span.End()

	start := p.now()
	res, err := p.run(ctx, prof)
	elapsed := p.now().Sub(start)
	metrics.PropensityScoreDuration.WithLabelValues(version).Observe(elapsed.Seconds())

	log := p.logger.WithFields(map[string]interface{}{
		"requestId":     id,
		"schemaVersion": version,
	})
	if err != nil {
		span.RecordError(err)
		metrics.PropensityScores.WithLabelValues(version, "error").Inc()
		log.Error("Scoring failed", map[string]interface{}{"error": err})
		return nil, err
	}
	metrics.PropensityScores.WithLabelValues(version, "ok").Inc()
	for _, e := range res.Ranked {
		metrics.ProductRankings.WithLabelValues(string(e.Product), strconv.Itoa(e.Rank)).Inc()
	}

	res.RequestID = id
	res.SchemaVersion = version
	res.ScoredAt = p.now().UTC()
	log.Debug("Profile scored", map[string]interface{}{
		"top":      res.Ranked.Products(),
		"duration": elapsed.String(),
	})
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, prof *models.CustomerProfile) (*Result, error) {
	stage := func(name string, start time.Time) { p.obs.RecordStage(ctx, name, p.now().Sub(start)) }

	t := p.now()
	vec, err := p.builder.BuildFor(prof, p.bundle.Schema)
	stage("build", t)
	if err != nil {
		return nil, err
	}

	t = p.now()
	scaled, err := p.bundle.Scaler.Transform(vec)
	stage("scale", t)
	if err != nil {
		return nil, err
	}

	t = p.now()
	products := p.bundle.Bank.Products()
	scores := make(models.ScoreMap, len(products))
	for _, product := range products {
		prob, err := p.bundle.Bank.PredictProbability(product, scaled)
		if err != nil {
			return nil, err
		}
		scores[product] = prob
	}
	stage("predict", t)

	t = p.now()
	ranked, masked := p.ranker.Rank(scores, prof)
	stage("rank", t)

	return &Result{Scores: masked, Ranked: ranked}, nil
}
