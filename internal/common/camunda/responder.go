package camunda

import (
	"context"

	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// Responder reports job outcomes to the broker on behalf of one task type.
type Responder struct {
	taskType string
	errs     *errors.ErrorHandler
	logger   logger.Logger
	retry    *RetryConfig
}

func NewResponder(taskType string, log logger.Logger) *Responder {
	return &Responder{
		taskType: taskType,
		errs:     errors.NewErrorHandler(log),
		logger:   log,
		retry:    DefaultRetryConfig,
	}
}

// Complete publishes output as the job's result variables.
func (r *Responder) Complete(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}) {
	err := WithRetry(ctx, r.retry, "complete job", func(ctx context.Context) error {
		cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
		if err != nil {
			return err
		}
		_, err = cmd.Send(ctx)
		return err
	})
	if err != nil {
		r.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(r.taskType).Inc()
	r.logger.Info("job completed", map[string]interface{}{"jobKey": job.Key})
}

// Fail reports err, throwing a BPMN error for business failures and failing
// the job with retries for transient ones.
func (r *Responder) Fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := r.errs.HandleJobError(ctx, client, job, err)
	metrics.WorkerJobsFailed.WithLabelValues(r.taskType, string(stdErr.Code)).Inc()
}
