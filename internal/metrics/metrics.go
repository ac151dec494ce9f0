// Package metrics exposes the prometheus counters and histograms the
// lifecycle components increment as they move a task through acquisition,
// renewal, and completion, in the teacher's promauto-package-level-vector
// style.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Acquirer metrics
	NoMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_no_messages_total",
		Help: "Number of queue polls that returned no message",
	})

	FailedToClaim = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_failed_to_claim_total",
		Help: "Number of claim conditional writes rejected by the metadata store",
	})

	SuccessfulAcquire = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_successful_acquire_total",
		Help: "Number of tasks successfully claimed",
	})

	// Renewer metrics
	UpdateTTLFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_update_ttl_failed_total",
		Help: "Number of lease renewals that failed for a non-throttling reason",
	})

	// Committer metrics
	SetFinishedFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_set_finished_failed_total",
		Help: "Number of completion writes rejected because ownership had lapsed",
	})

	SetFinishedSucceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_set_finished_succeeded_total",
		Help: "Number of tasks successfully marked finished",
	})

	// Execution Driver metrics
	BootstrapFailure = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_bootstrap_failure_total",
		Help: "Number of remote invocations that returned a bootstrap-failure marker",
	})

	TaskExecTimeMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agent_task_exec_time_ms",
		Help:    "Execution driver invocation time in milliseconds",
		Buckets: prometheus.ExponentialBuckets(10, 2, 14), // 10ms to ~80s
	})

	AgentTotalTimeMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agent_total_time_ms",
		Help:    "End-to-end time from acquisition through completion commit, in milliseconds",
		Buckets: prometheus.ExponentialBuckets(10, 2, 16),
	})
)

// RecordNoMessages records an empty-poll Acquirer iteration.
func RecordNoMessages() {
	NoMessages.Inc()
}

// RecordFailedToClaim records a lost claim race against another owner.
func RecordFailedToClaim() {
	FailedToClaim.Inc()
}

// RecordSuccessfulAcquire records a successful claim.
func RecordSuccessfulAcquire() {
	SuccessfulAcquire.Inc()
}

// RecordUpdateTTLFailed records a non-throttling renewal failure.
func RecordUpdateTTLFailed() {
	UpdateTTLFailed.Inc()
}

// RecordSetFinishedFailed records a completion write lost because the lease
// had already lapsed and a watchdog reclaimed the row.
func RecordSetFinishedFailed() {
	SetFinishedFailed.Inc()
}

// RecordSetFinishedSucceeded records a successful completion commit.
func RecordSetFinishedSucceeded() {
	SetFinishedSucceeded.Inc()
}

// RecordBootstrapFailure records a remote-runtime bootstrap failure.
func RecordBootstrapFailure() {
	BootstrapFailure.Inc()
}

// RecordTaskExecTimeMS records the Execution Driver's invocation time.
func RecordTaskExecTimeMS(ms float64) {
	TaskExecTimeMS.Observe(ms)
}

// RecordAgentTotalTimeMS records the end-to-end acquire-to-commit time.
func RecordAgentTotalTimeMS(ms float64) {
	AgentTotalTimeMS.Observe(ms)
}
