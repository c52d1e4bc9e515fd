// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Workflow metrics
	WorkflowsTotal   *prometheus.CounterVec
	WorkflowDuration *prometheus.HistogramVec
	Confirmations    *prometheus.CounterVec

	// Ledger metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec

	// Reconciliation metrics
	EnrichTotal *prometheus.CounterVec

	// Sync metrics
	BackfillsTotal       *prometheus.CounterVec
	EventsProcessed      *prometheus.CounterVec
	SyncErrors           *prometheus.CounterVec
	LogNotifications     prometheus.Counter
	LastSuccessfulSync   prometheus.Gauge
	PartialOrchestration prometheus.Counter

	// Content store metrics
	ContentUploads     *prometheus.CounterVec
	ContentUploadBytes prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec

	// Health metrics
	UptimeSeconds prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "carbon_exchange"
	}

	return &Metrics{
		// Workflow metrics
		WorkflowsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "runs_total",
			Help:      "Total number of mint/list/buy/retire/cancel workflows by outcome",
		}, []string{"workflow", "outcome"}),
		WorkflowDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "duration_seconds",
			Help:      "Workflow duration in seconds, confirmation wait included",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 90},
		}, []string{"workflow"}),
		Confirmations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "confirmations_total",
			Help:      "Confirmation wait results by final status",
		}, []string{"status"}),

		// Ledger metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed Solana RPC calls",
		}, []string{"method"}),

		// Reconciliation metrics
		EnrichTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "enrich_total",
			Help:      "Asset view enrichments by outcome (ok, miss, degraded, error)",
		}, []string{"outcome"}),

		// Sync metrics
		BackfillsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "backfills_total",
			Help:      "Off-chain records written or updated by the sync pass",
		}, []string{"kind"}),
		EventsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "events_processed_total",
			Help:      "Exchange program events applied, by event and trigger",
		}, []string{"event", "trigger"}),
		SyncErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "errors_total",
			Help:      "Sync failures by source",
		}, []string{"source"}),
		LogNotifications: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "log_notifications_total",
			Help:      "Program log notifications received over WebSocket",
		}),
		LastSuccessfulSync: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "last_successful_scan_timestamp",
			Help:      "Unix timestamp of the last completed periodic scan",
		}),
		PartialOrchestration: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "partial_mints_total",
			Help:      "Mints confirmed on-chain whose off-chain record could not be written",
		}),

		// Content store metrics
		ContentUploads: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "content",
			Name:      "uploads_total",
			Help:      "Content store uploads by outcome",
		}, []string{"outcome"}),
		ContentUploadBytes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "content",
			Name:      "upload_bytes_total",
			Help:      "Bytes uploaded to the content store",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// HTTP metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),

		// Health metrics
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordWorkflow records a finished workflow.
func RecordWorkflow(workflow, outcome string, durationSeconds float64) {
	DefaultMetrics.WorkflowsTotal.WithLabelValues(workflow, outcome).Inc()
	DefaultMetrics.WorkflowDuration.WithLabelValues(workflow).Observe(durationSeconds)
}

// RecordConfirmation records the final status of a confirmation wait.
func RecordConfirmation(status string) {
	DefaultMetrics.Confirmations.WithLabelValues(status).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordEnrich records an enrichment outcome.
func RecordEnrich(outcome string) {
	DefaultMetrics.EnrichTotal.WithLabelValues(outcome).Inc()
}

// RecordBackfill records an off-chain record written by sync.
func RecordBackfill(kind string) {
	DefaultMetrics.BackfillsTotal.WithLabelValues(kind).Inc()
}

// RecordEventProcessed records an applied program event.
func RecordEventProcessed(event, trigger string) {
	DefaultMetrics.EventsProcessed.WithLabelValues(event, trigger).Inc()
}

// RecordSyncError records a sync failure.
func RecordSyncError(source string) {
	DefaultMetrics.SyncErrors.WithLabelValues(source).Inc()
}

// RecordLogNotification counts a received program log notification.
func RecordLogNotification() {
	DefaultMetrics.LogNotifications.Inc()
}

// UpdateLastSync sets the last successful scan timestamp.
func UpdateLastSync(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulSync.Set(float64(unixSeconds))
}

// RecordPartialMint counts a mint left without an off-chain record.
func RecordPartialMint() {
	DefaultMetrics.PartialOrchestration.Inc()
}

// RecordContentUpload records a content store upload.
func RecordContentUpload(bytes int, err error) {
	if err != nil {
		DefaultMetrics.ContentUploads.WithLabelValues("error").Inc()
		return
	}
	DefaultMetrics.ContentUploads.WithLabelValues("ok").Inc()
	DefaultMetrics.ContentUploadBytes.Add(float64(bytes))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(route string, code int) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, http.StatusText(code)).Inc()
}
