package camunda

import (
	"context"
	"time"

	"ipo-readiness/internal/common/config"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/common/metrics"
	"ipo-readiness/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.opentelemetry.io/otel/attribute"
)

// HandlerFunc is the Zeebe job callback every worker exposes as Handle.
type HandlerFunc func(client worker.JobClient, job entities.Job)

// JobValidator checks raw job variables before the handler runs.
// *validation.Validator satisfies it.
type JobValidator interface {
	ValidateJob(taskType, variables string) error
}

// StartWorker opens a job worker for taskType, instrumented with a span and
// duration metrics. Jobs failing the registry schema are rejected before the
// handler sees them. It returns nil when the worker is disabled.
func StartWorker(
	client zbc.Client,
	taskType string,
	wcfg config.WorkerConfig,
	handler HandlerFunc,
	schemas JobValidator,
	obs *observability.Observability,
	log logger.Logger,
) worker.JobWorker {
	if !wcfg.Enabled {
		log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return nil
	}

	instrumented := func(jc worker.JobClient, job entities.Job) {
		start := time.Now()
		ctx := context.Background()
		if obs != nil {
			spanCtx, s := obs.StartSpan(ctx, taskType,
				attribute.Int64("job.key", job.Key),
				attribute.Int64("process.instance.key", job.ProcessInstanceKey),
			)
			ctx = spanCtx
			defer s.End()
		}

		if schemas != nil {
			if err := schemas.ValidateJob(taskType, job.Variables); err != nil {
				NewResponder(taskType, log).Fail(ctx, jc, job, err)
				return
			}
		}
		handler(jc, job)

		metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
		if obs != nil {
			obs.RecordJob(ctx, taskType, "handled", time.Since(start))
		}
	}

	jw := client.NewJobWorker().
		JobType(taskType).
		Handler(instrumented).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeoutMs":     wcfg.Timeout,
	})
	return jw
}
