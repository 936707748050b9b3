package camunda

import (
	"context"
	"strconv"
	"time"

	"propensity-scoring/internal/common/config"
	apperrors "propensity-scoring/internal/common/errors"
	"propensity-scoring/internal/common/logger"
	"propensity-scoring/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// StartWorker opens a job worker for taskType with the worker's configured
// concurrency and timeout.
func StartWorker(client zbc.Client, taskType string, wc config.WorkerConfig, handler JobHandler, log logger.Logger) worker.JobWorker {
	log.Info("starting worker", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wc.MaxJobsActive,
		"timeoutMs":     wc.Timeout,
	})

	return client.NewJobWorker().
		JobType(taskType).
		Handler(instrument(taskType, handler)).
		MaxJobsActive(wc.MaxJobsActive).
		Timeout(config.GetDuration(wc.Timeout)).
		Name(taskType).
		Open()
}

func instrument(taskType string, handler JobHandler) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		start := time.Now()
		defer func() {
			metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
		}()
		handler.Handle(client, job)
	}
}

// Responder completes or fails jobs for one task type and keeps the job
// counters in step.
type Responder struct {
	taskType   string
	logger     logger.Logger
	errHandler *apperrors.ErrorHandler
}

func NewResponder(taskType string, log logger.Logger) *Responder {
	return &Responder{
		taskType:   taskType,
		logger:     log,
		errHandler: apperrors.NewErrorHandler(log),
	}
}

func (r *Responder) Complete(client worker.JobClient, job entities.Job, output interface{}) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		r.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
		r.Fail(client, job, apperrors.NewInternalError(err))
		return
	}

	if _, err := cmd.Send(context.Background()); err != nil {
		r.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(r.taskType).Inc()
	r.logger.Info("job completed", map[string]interface{}{
		"jobKey": job.Key,
	})
}

func (r *Responder) Fail(client worker.JobClient, job entities.Job, err error) {
	stdErr := apperrors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(r.taskType, string(stdErr.Code)).Inc()
	r.errHandler.HandleJobError(context.Background(), client, job, stdErr)
}

// JobFields is the common log context for a job.
func JobFields(job entities.Job) map[string]interface{} {
	return map[string]interface{}{
		"jobKey":             job.Key,
		"processInstanceKey": job.ProcessInstanceKey,
		"retries":            strconv.Itoa(int(job.Retries)),
	}
}
