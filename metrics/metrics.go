package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsar_events_ingested_total",
			Help: "Total number of events read from an input source",
		},
		[]string{"source"},
	)

	IngestDecodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsar_ingest_decode_errors_total",
			Help: "Total number of input records that could not be decoded",
		},
		[]string{"format"},
	)

	EventsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulsar_events_processed_total",
			Help: "Total number of events evaluated against the rule set",
		},
	)

	EventsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulsar_events_skipped_total",
			Help: "Total number of threat events skipped by the rules engine",
		},
	)

	RuleMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsar_rule_matches_total",
			Help: "Total number of rule matches",
		},
		[]string{"rule"},
	)

	RulesLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulsar_rules_loaded",
			Help: "Number of rules in the compiled rule set",
		},
	)

	EventsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulsar_events_deduplicated_total",
			Help: "Total number of ingested events dropped because their event ID was already seen",
		},
	)

	ThreatsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulsar_threats_dropped_total",
			Help: "Total number of derived threat events dropped because the output channel was full",
		},
	)

	EventProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pulsar_event_processing_duration_seconds",
			Help:    "Time taken to evaluate an event against the rule set",
			Buckets: prometheus.DefBuckets,
		},
	)

	RegexTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulsar_regex_timeouts_total",
			Help: "Total number of regex evaluations aborted by the match timeout",
		},
	)

	WorkerPoolActiveWorkers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pulsar_worker_pool_active_workers",
			Help: "Number of running workers per pool",
		},
		[]string{"pool"},
	)

	WorkerPoolTasksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsar_worker_pool_tasks_processed_total",
			Help: "Total number of tasks completed per pool",
		},
		[]string{"pool"},
	)
)
