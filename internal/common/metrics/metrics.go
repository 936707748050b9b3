package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_job_duration_seconds",
			Help:    "Duration of job processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	PropensityScores = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propensity_scores_total",
			Help: "Customer profiles scored, by feature schema version and outcome",
		},
		[]string{"schema_version", "outcome"},
	)

	PropensityScoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "propensity_score_duration_seconds",
			Help:    "Time spent in the scoring pipeline",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		},
		[]string{"schema_version"},
	)

	ProductRankings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propensity_product_rank_total",
			Help: "Times a product was returned at a given rank position",
		},
		[]string{"product", "position"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propensity_cache_hits_total",
			Help: "Score cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)
