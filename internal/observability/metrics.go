package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	reconcileTotal    *prometheus.CounterVec
	reconcileDuration prometheus.Histogram
	recoveryTotal     *prometheus.CounterVec

	toolCallTotal    *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	syncTotal *prometheus.CounterVec

	storeOps *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			reconcileTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tab_reconcile_total",
					Help: "Total reconciliation passes by outcome.",
				},
				[]string{"outcome"},
			),
			reconcileDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "tab_reconcile_duration_seconds",
					Help:    "Reconciliation pass duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			recoveryTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tab_recovery_total",
					Help: "Recovery path taken when the stored index went stale.",
				},
				[]string{"path"},
			),
			toolCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "browser_tool_call_total",
					Help: "Total browser tool calls by action and status.",
				},
				[]string{"action", "status"},
			),
			toolCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "browser_tool_call_duration_seconds",
					Help:    "Browser tool call duration in seconds by action.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"action"},
			),
			cacheHits: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "tabs_list_cache_hits_total",
					Help: "Tabs-list cache hits.",
				},
			),
			cacheMisses: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "tabs_list_cache_misses_total",
					Help: "Tabs-list cache misses (including forced refreshes).",
				},
			),
			syncTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tab_sync_total",
					Help: "AI-initiated action syncs by action and outcome.",
				},
				[]string{"action", "outcome"},
			),
			storeOps: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tab_store_ops_total",
					Help: "Persistence operations by op and status.",
				},
				[]string{"op", "status"},
			),
		}

		prometheus.MustRegister(
			m.reconcileTotal,
			m.reconcileDuration,
			m.recoveryTotal,
			m.toolCallTotal,
			m.toolCallDuration,
			m.cacheHits,
			m.cacheMisses,
			m.syncTotal,
			m.storeOps,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

// RecordReconcile records one reconciliation pass.
func RecordReconcile(outcome string, duration time.Duration) {
	m := getMetrics()
	m.reconcileTotal.WithLabelValues(outcome).Inc()
	m.reconcileDuration.Observe(duration.Seconds())
}

// RecordRecovery records which recovery path repaired a stale selection.
func RecordRecovery(path string) {
	getMetrics().recoveryTotal.WithLabelValues(path).Inc()
}

// RecordToolCall records one browser tool call.
func RecordToolCall(action string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "success"
	if !success {
		status = "error"
	}
	m.toolCallTotal.WithLabelValues(action, status).Inc()
	m.toolCallDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordCacheHit counts a tabs-list cache hit.
func RecordCacheHit() {
	getMetrics().cacheHits.Inc()
}

// RecordCacheMiss counts a tabs-list cache miss.
func RecordCacheMiss() {
	getMetrics().cacheMisses.Inc()
}

// RecordSync records an AI-initiated action sync.
func RecordSync(action, outcome string) {
	getMetrics().syncTotal.WithLabelValues(action, outcome).Inc()
}

// RecordStoreOp records a persistence operation.
func RecordStoreOp(op string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	getMetrics().storeOps.WithLabelValues(op, status).Inc()
}
