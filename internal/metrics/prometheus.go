// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the crew operations tool.
var (
	// Quest board.
	QuestCompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quest_completions_total",
			Help: "Total number of quest completions recorded",
		},
		[]string{"type", "scope"},
	)

	QuestCompletionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quest_completions_rejected_total",
			Help: "Total number of completion attempts rejected",
		},
		[]string{"reason"},
	)

	XPAwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xp_awarded_total",
			Help: "Total XP awarded through quest completions",
		},
		[]string{"type"},
	)

	LevelUpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "level_ups_total",
			Help: "Total number of level-ups reached",
		},
		[]string{"level"},
	)

	ActiveQuests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "active_quests",
			Help: "Current number of active quests",
		},
		[]string{"type"},
	)

	// Procedures.
	ProceduresGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procedures_generated_total",
			Help: "Total procedure generation attempts",
		},
		[]string{"status"},
	)

	ProcedureGenerationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "procedure_generation_seconds",
			Help:    "Time taken by the language model to draft a procedure",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~256s
		},
	)

	ProcedureAcknowledgementsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "procedure_acknowledgements_total",
			Help: "Total signed procedure acknowledgements",
		},
	)

	// QuickBooks.
	QuickBooksRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quickbooks_requests_total",
			Help: "Total QuickBooks API requests",
		},
		[]string{"operation", "status"},
	)

	// Scheduler metrics.
	SchedulerJobsRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_run_total",
			Help: "Total scheduler job executions",
		},
		[]string{"job", "status"},
	)

	SchedulerNotificationsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_notifications_sent_total",
			Help: "Total successful digest notifications sent",
		},
	)

	SchedulerNotificationsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_notifications_failed_total",
			Help: "Total failed notification attempts",
		},
		[]string{"reason"},
	)

	SchedulerLastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_last_run_timestamp",
			Help: "Unix timestamp of last scheduler run",
		},
		[]string{"job"},
	)

	SchedulerJobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Time taken to execute a scheduler job",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		},
		[]string{"job"},
	)
)

// RecordQuestCompletion records a completion and the XP it awarded.
func RecordQuestCompletion(questType, scope string, xp int) {
	QuestCompletionsTotal.WithLabelValues(questType, scope).Inc()
	XPAwardedTotal.WithLabelValues(questType).Add(float64(xp))
}

// RecordCompletionRejected records a refused completion attempt.
func RecordCompletionRejected(reason string) {
	QuestCompletionsRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordLevelUp records a user reaching a new level.
func RecordLevelUp(level string) {
	LevelUpsTotal.WithLabelValues(level).Inc()
}

// SetActiveQuests sets the number of active quests for a type.
func SetActiveQuests(questType string, count int) {
	ActiveQuests.WithLabelValues(questType).Set(float64(count))
}

// RecordProcedureGenerated records a generation attempt.
func RecordProcedureGenerated(status string) {
	ProceduresGeneratedTotal.WithLabelValues(status).Inc()
}

// ObserveProcedureGeneration observes how long a generation took.
func ObserveProcedureGeneration(seconds float64) {
	ProcedureGenerationSeconds.Observe(seconds)
}

// RecordProcedureAcknowledged records a signed acknowledgement.
func RecordProcedureAcknowledged() {
	ProcedureAcknowledgementsTotal.Inc()
}

// RecordQuickBooksRequest records a QuickBooks API call.
func RecordQuickBooksRequest(operation, status string) {
	QuickBooksRequestsTotal.WithLabelValues(operation, status).Inc()
}

// RecordSchedulerJobRun records a scheduler job execution.
func RecordSchedulerJobRun(job, status string) {
	SchedulerJobsRunTotal.WithLabelValues(job, status).Inc()
}

// RecordSchedulerNotificationSent records a successful notification sent.
func RecordSchedulerNotificationSent() {
	SchedulerNotificationsSentTotal.Inc()
}

// RecordSchedulerNotificationFailed records a failed notification attempt.
func RecordSchedulerNotificationFailed(reason string) {
	SchedulerNotificationsFailedTotal.WithLabelValues(reason).Inc()
}

// SetSchedulerLastRun sets the timestamp of the last run of a job.
func SetSchedulerLastRun(job string) {
	SchedulerLastRunTimestamp.WithLabelValues(job).SetToCurrentTime()
}

// ObserveSchedulerJobDuration observes the duration of a scheduler job.
func ObserveSchedulerJobDuration(job string, seconds float64) {
	SchedulerJobDurationSeconds.WithLabelValues(job).Observe(seconds)
}
