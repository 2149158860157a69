// Package metrics provides Prometheus metrics for the fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MergesTotal tracks merge attempts by kind and outcome
	MergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "merge",
			Name:      "total",
			Help:      "Total number of merges by entity kind and outcome",
		},
		[]string{"kind", "status"},
	)

	// MergeDuration tracks how long a merge transaction takes
	MergeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "merge",
			Name:      "duration_seconds",
			Help:      "Duration of merges in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	// MergeRecordsTotal tracks attached records moved or deduplicated per relation
	MergeRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "merge",
			Name:      "records_total",
			Help:      "Total number of attached records moved or deduplicated by merges",
		},
		[]string{"kind", "relation"},
	)

	// JobsEnqueuedTotal tracks downstream jobs handed to the work queue
	JobsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "queue",
			Name:      "jobs_enqueued_total",
			Help:      "Total number of jobs enqueued by type and status",
		},
		[]string{"type", "status"},
	)

	// DelayedJobsPromoted tracks delayed jobs moved onto the stream once due
	DelayedJobsPromoted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "queue",
			Name:      "delayed_jobs_promoted_total",
			Help:      "Total number of delayed jobs promoted to the job stream",
		},
	)

	// PostCommitFailuresTotal tracks side effects that failed after a merge committed
	PostCommitFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "merge",
			Name:      "post_commit_failures_total",
			Help:      "Total number of post-commit side effects that failed",
		},
		[]string{"action"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// GraphProjectionsTotal tracks graph mirror updates
	GraphProjectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "graph",
			Name:      "projections_total",
			Help:      "Total number of merges projected into the graph database",
		},
		[]string{"kind", "status"},
	)
)

// RecordMerge records a finished merge
func RecordMerge(kind, status string, durationSeconds float64) {
	MergesTotal.WithLabelValues(kind, status).Inc()
	MergeDuration.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordMergeStats records per-relation counts of a committed merge
func RecordMergeStats(kind string, stats map[string]int) {
	for relation, count := range stats {
		MergeRecordsTotal.WithLabelValues(kind, relation).Add(float64(count))
	}
}

// RecordJobEnqueued records a work queue submission
func RecordJobEnqueued(jobType, status string) {
	JobsEnqueuedTotal.WithLabelValues(jobType, status).Inc()
}

// RecordPostCommitFailure records a failed post-commit side effect
func RecordPostCommitFailure(action string) {
	PostCommitFailuresTotal.WithLabelValues(action).Inc()
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}

// RecordGraphProjection records a graph mirror update
func RecordGraphProjection(kind, status string) {
	GraphProjectionsTotal.WithLabelValues(kind, status).Inc()
}
