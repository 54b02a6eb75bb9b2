// Package metrics provides Prometheus metrics for the ScubaDex materialization engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Event pipeline metrics
	eventsApplied     prometheus.Counter
	eventsDuplicate   prometheus.Counter
	eventsMalformed   prometheus.Counter
	eventsDeadLetter  prometheus.Counter
	foldLatency       prometheus.Histogram
	driftDetected     prometheus.Counter
	badgesAwarded     prometheus.Counter
	ledgerClaims      prometheus.Counter
	ledgerSize        prometheus.Gauge

	// Aggregate store metrics
	trackedUsers prometheus.Gauge

	// Leaderboard metrics
	leaderboardRebuilds        *prometheus.CounterVec
	leaderboardRebuildDuration prometheus.Histogram
	leaderboardLastRebuildUnix prometheus.Gauge

	// Reconciliation metrics
	reconcileRuns       *prometheus.CounterVec
	reconcileFailures   prometheus.Counter
	reconcileSuperseded prometheus.Counter
	reconcileDuration   prometheus.Histogram

	// Queue metrics
	queueCapacity      prometheus.Gauge
	queueSize          prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueues      prometheus.Counter
	queueDequeues      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker metrics
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter
	workerRetries           prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error tracking
	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "reefconnect",
		subsystem:        "scubadex",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // metric registration is necessarily long
	auto := promauto.With(m.registry)

	// Event pipeline
	m.eventsApplied = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_applied_total",
		Help:      "Total number of events folded into aggregates",
	})

	m.eventsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_duplicate_total",
		Help:      "Total number of redelivered events suppressed by the idempotency ledger",
	})

	m.eventsMalformed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_malformed_total",
		Help:      "Total number of events dropped as permanently unprocessable",
	})

	m.eventsDeadLetter = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_dead_letter_total",
		Help:      "Total number of events moved to the dead-letter path after retry exhaustion",
	})

	m.foldLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fold_latency_milliseconds",
		Help:      "Histogram of per-event fold latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.driftDetected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "drift_detected_total",
		Help:      "Total number of invariant violations that triggered reconciliation",
	})

	m.badgesAwarded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "badges_awarded_total",
		Help:      "Total number of badge awards created",
	})

	m.ledgerClaims = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_claims_total",
		Help:      "Total number of successful idempotency claims",
	})

	m.ledgerSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_size",
		Help:      "Current number of records retained by the idempotency ledger",
	})

	// Aggregate stores
	m.trackedUsers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tracked_users",
		Help:      "Number of users with materialized aggregates",
	})

	// Leaderboard
	m.leaderboardRebuilds = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "leaderboard_rebuilds_total",
			Help:      "Total number of leaderboard snapshot rebuilds by metric",
		},
		[]string{"metric"},
	)

	m.leaderboardRebuildDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_rebuild_duration_milliseconds",
		Help:      "Histogram of leaderboard rebuild duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.leaderboardLastRebuildUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_last_rebuild_timestamp_seconds",
		Help:      "Unix timestamp of the last leaderboard rebuild",
	})

	// Reconciliation
	m.reconcileRuns = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "reconcile_runs_total",
			Help:      "Total number of reconciliation passes by scope",
		},
		[]string{"scope"},
	)

	m.reconcileFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reconcile_failures_total",
		Help:      "Total number of reconciliation passes aborted on source read failure",
	})

	m.reconcileSuperseded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reconcile_superseded_total",
		Help:      "Total number of reconciliation passes discarded by a newer request",
	})

	m.reconcileDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reconcile_duration_milliseconds",
		Help:      "Histogram of reconciliation pass duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// Queue
	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Maximum per-partition queue capacity",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current number of queued events across partitions",
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_utilization_ratio",
		Help:      "Queue utilization as a ratio of capacity",
	})

	m.queueEnqueues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_total",
		Help:      "Total number of events enqueued",
	})

	m.queueDequeues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dequeue_total",
		Help:      "Total number of events dequeued",
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_errors_total",
		Help:      "Total number of rejected enqueue attempts",
	})

	// Workers
	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Number of partition workers",
	})

	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_processing_latency_milliseconds",
		Help:      "Histogram of end-to-end worker processing latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Total number of worker processing errors",
	})

	m.workerRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_retries_total",
		Help:      "Total number of store write retries after a released claim",
	})

	// HTTP
	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "Histogram of HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	// Errors
	m.errorsByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component and type",
		},
		[]string{"component", "error_type"},
	)
}

// Event pipeline functions.

// RecordEventApplied increments the applied events counter.
func RecordEventApplied() {
	globalManager.eventsApplied.Inc()
}

// RecordEventDuplicate increments the duplicate events counter.
func RecordEventDuplicate() {
	globalManager.eventsDuplicate.Inc()
}

// RecordEventMalformed increments the malformed events counter.
func RecordEventMalformed() {
	globalManager.eventsMalformed.Inc()
}

// RecordEventDeadLetter increments the dead-letter counter.
func RecordEventDeadLetter() {
	globalManager.eventsDeadLetter.Inc()
}

// RecordFoldLatency records the fold latency in milliseconds.
func RecordFoldLatency(latencyMs float64) {
	globalManager.foldLatency.Observe(latencyMs)
}

// RecordDriftDetected increments the drift counter.
func RecordDriftDetected() {
	globalManager.driftDetected.Inc()
}

// RecordBadgeAwarded increments the badge award counter.
func RecordBadgeAwarded() {
	globalManager.badgesAwarded.Inc()
}

// RecordLedgerClaim increments the successful claim counter.
func RecordLedgerClaim() {
	globalManager.ledgerClaims.Inc()
}

// UpdateLedgerSize sets the current ledger size.
func UpdateLedgerSize(size int64) {
	globalManager.ledgerSize.Set(float64(size))
}

// Aggregate store functions.

// UpdateTrackedUsers sets the number of users with materialized aggregates.
func UpdateTrackedUsers(count int) {
	globalManager.trackedUsers.Set(float64(count))
}

// Leaderboard functions.

// RecordLeaderboardRebuild increments the rebuild counter for a metric.
func RecordLeaderboardRebuild(metric string) {
	globalManager.leaderboardRebuilds.WithLabelValues(metric).Inc()
}

// RecordLeaderboardRebuildDuration records a rebuild duration in milliseconds.
func RecordLeaderboardRebuildDuration(durationMs float64) {
	globalManager.leaderboardRebuildDuration.Observe(durationMs)
	globalManager.leaderboardLastRebuildUnix.Set(float64(time.Now().Unix()))
}

// Reconciliation functions.

// RecordReconcileRun increments the reconciliation counter for a scope.
func RecordReconcileRun(scope string) {
	globalManager.reconcileRuns.WithLabelValues(scope).Inc()
}

// RecordReconcileFailure increments the reconciliation failure counter.
func RecordReconcileFailure() {
	globalManager.reconcileFailures.Inc()
}

// RecordReconcileSuperseded increments the superseded pass counter.
func RecordReconcileSuperseded() {
	globalManager.reconcileSuperseded.Inc()
}

// RecordReconcileDuration records a reconciliation pass duration in milliseconds.
func RecordReconcileDuration(durationMs float64) {
	globalManager.reconcileDuration.Observe(durationMs)
}

// Queue functions.

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueues.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeues.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Worker functions.

// UpdateWorkerCount sets the partition worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordWorkerRetry increments the worker retry counter.
func RecordWorkerRetry() {
	globalManager.workerRetries.Inc()
}

// HTTP functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
