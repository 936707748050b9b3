// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	awsclients "propensity-scoring/internal/common/aws"
	"propensity-scoring/internal/common/camunda"
	"propensity-scoring/internal/common/config"
	"propensity-scoring/internal/common/database"
	"propensity-scoring/internal/common/logger"
	"propensity-scoring/internal/common/observability"
	"propensity-scoring/internal/models"
	"propensity-scoring/internal/propensity/artifacts"
	"propensity-scoring/internal/propensity/pipeline"
	"propensity-scoring/internal/propensity/ranking"
	"propensity-scoring/pkg/registry"

	ir "propensity-scoring/internal/workers/propensity/index-recommendation"
	nr "propensity-scoring/internal/workers/propensity/notify-recommendation"
	rr "propensity-scoring/internal/workers/propensity/record-recommendation"
	spp "propensity-scoring/internal/workers/propensity/score-product-propensity"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	reg, err := registry.Default()
	if err != nil {
		zapLog.Fatal("activity registry invalid", zap.Error(err))
	}
	zapLog.Info("activity registry loaded",
		zap.String("version", reg.Version),
		zap.Strings("taskTypes", reg.TaskTypes()),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Model bundle ---
	bundleOpts := []artifacts.Option{artifacts.WithExpectedSchema(cfg.Artifacts.ExpectedSchema)}
	if cfg.Artifacts.ModelDir != "" {
		bundleOpts = append(bundleOpts, artifacts.WithModelDir(cfg.Artifacts.ModelDir))
	}
	bundle, err := artifacts.LoadBundle(cfg.Artifacts.BundlePath, bundleOpts...)
	if err != nil {
		zapLog.Fatal("model bundle load failed", zap.Error(err), zap.String("path", cfg.Artifacts.BundlePath))
	}

	payroll, ok := models.ParseProduct(cfg.Ranking.PayrollProduct)
	if !ok {
		zapLog.Fatal("unknown payroll product", zap.String("product", cfg.Ranking.PayrollProduct))
	}
	scorer, err := pipeline.New(bundle,
		pipeline.WithRanker(ranking.NewRanker(cfg.Ranking.TopN, payroll)),
		pipeline.WithLogger(log),
		pipeline.WithObservability(obs),
	)
	if err != nil {
		zapLog.Fatal("pipeline init failed", zap.Error(err))
	}
	zapLog.Info("model bundle loaded",
		zap.String("schemaVersion", scorer.SchemaVersion()),
		zap.String("packaging", bundle.Packaging),
		zap.String("bucketer", bundle.Bucketer.Name()),
		zap.Int("products", len(scorer.Products())),
	)

	// --- Zeebe ---
	zeebeClient, err := camunda.Connect(ctx, cfg.Camunda, log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Redis (score cache) ---
	var rdb *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			zapLog.Fatal("redis client failed", zap.Error(err))
		}
		err = camunda.RetryWithBackoff(ctx, camunda.DefaultRetryConfig, log, "redis", redisClient.Ping)
		if err != nil {
			// Scoring still works without the cache.
			zapLog.Warn("redis unreachable, score cache disabled", zap.Error(err))
			_ = redisClient.Close()
		} else {
			defer redisClient.Close()
			rdb = redisClient.Client
			zapLog.Info("Redis connected successfully")
		}
	}

	var workers []worker.JobWorker

	if wc := config.GetWorkerConfig(cfg, spp.TaskType); wc.Enabled {
		handler := spp.NewHandler(&spp.Config{
			Timeout:      config.GetDuration(wc.Timeout),
			CacheEnabled: cfg.Cache.Enabled && rdb != nil,
			CacheTTL:     cfg.Cache.CacheTTL(),
			KeyPrefix:    cfg.Cache.KeyPrefix,
		}, scorer, rdb, obs, log)
		workers = append(workers, camunda.StartWorker(zeebeClient, spp.TaskType, wc, handler, log))
	}

	if wc := config.GetWorkerConfig(cfg, rr.TaskType); wc.Enabled {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			zapLog.Fatal("postgres client failed", zap.Error(err))
		}
		err = camunda.RetryWithBackoff(ctx, camunda.DefaultRetryConfig, log, "postgres", func(ctx context.Context) error {
			if err := pg.Ping(ctx); err != nil {
				return err
			}
			return pg.EnsureSchema(ctx)
		})
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")

		handler := rr.NewHandler(&rr.Config{Timeout: config.GetDuration(wc.Timeout)}, pg.DB, log)
		workers = append(workers, camunda.StartWorker(zeebeClient, rr.TaskType, wc, handler, log))
	}

	if wc := config.GetWorkerConfig(cfg, ir.TaskType); wc.Enabled {
		esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			zapLog.Fatal("elasticsearch client failed", zap.Error(err))
		}
		index := cfg.Search.RecommendationIndex
		err = camunda.RetryWithBackoff(ctx, camunda.DefaultRetryConfig, log, "elasticsearch", func(ctx context.Context) error {
			if err := esClient.Ping(ctx); err != nil {
				return err
			}
			return esClient.EnsureIndex(ctx, index, database.RecommendationMapping)
		})
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully", zap.String("index", index))

		handler := ir.NewHandler(&ir.Config{
			IndexName: index,
			Timeout:   config.GetDuration(wc.Timeout),
		}, esClient.Client, log)
		workers = append(workers, camunda.StartWorker(zeebeClient, ir.TaskType, wc, handler, log))
	}

	if wc := config.GetWorkerConfig(cfg, nr.TaskType); wc.Enabled {
		awsClients, err := awsclients.NewClients(ctx, cfg.Notifications.AWSRegion)
		if err != nil {
			zapLog.Fatal("aws clients failed", zap.Error(err))
		}
		var mailer awsclients.Mailer
		if cfg.Notifications.EmailEnabled {
			mailer = awsClients.SES
		}

		handler := nr.NewHandler(&nr.Config{
			TopicARN:     cfg.Notifications.TopicARN,
			EmailEnabled: cfg.Notifications.EmailEnabled,
			FromEmail:    cfg.Notifications.FromEmail,
			RMEmail:      cfg.Notifications.RMEmail,
			Timeout:      config.GetDuration(wc.Timeout),
		}, awsClients.SNS, mailer, log)
		workers = append(workers, camunda.StartWorker(zeebeClient, nr.TaskType, wc, handler, log))
	}

	if len(workers) == 0 {
		zapLog.Warn("no workers enabled")
	}
	zapLog.Info("workers registered", zap.Int("count", len(workers)))

	var ready atomic.Bool
	ready.Store(true)

	// --- Health & Metrics Server ---
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           newMux(&ready, scorer.SchemaVersion()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	ready.Store(false)
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	closeWorkers(workers)
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func closeWorkers(workers []worker.JobWorker) {
	for _, w := range workers {
		w.Close()
	}
	for _, w := range workers {
		w.AwaitClose()
	}
}

func newMux(ready *atomic.Bool, schemaVersion string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status":        "healthy",
			"schemaVersion": schemaVersion,
			"time":          time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !ready.Load() {
			writeStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting down"})
			return
		}
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
