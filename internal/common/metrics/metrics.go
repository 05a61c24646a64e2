package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipo_worker_jobs_completed_total",
			Help: "Jobs completed per task type",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipo_worker_jobs_failed_total",
			Help: "Jobs failed per task type and error code",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ipo_worker_job_duration_seconds",
			Help:    "Job processing time",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task_type"},
	)

	// StatusTransitions counts committed lead and assessment transitions.
	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipo_status_transitions_total",
			Help: "Committed status transitions",
		},
		[]string{"entity", "from", "to"},
	)

	OptimisticLockConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipo_optimistic_lock_conflicts_total",
			Help: "Writes rejected because the supplied version was stale",
		},
		[]string{"entity"},
	)

	AutosaveFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipo_autosave_flushes_total",
			Help: "Auto-save flush attempts by outcome",
		},
		[]string{"outcome"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipo_notifications_total",
			Help: "Notification deliveries by template, channel and outcome",
		},
		[]string{"template", "channel", "outcome"},
	)

	AssessmentScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ipo_assessment_score_percentage",
			Help:    "Percentage score of submitted assessments",
			Buckets: []float64{20, 40, 60, 80, 100},
		},
	)
)
