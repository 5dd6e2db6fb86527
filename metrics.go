package gamelan

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the orchestrator
// lifecycle, the identity cache and the retry machinery. All record methods
// are safe on a nil receiver so instrumentation stays optional.
type MetricsCollector struct {
	operationsTotal    *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec
	operationsInFlight *prometheus.GaugeVec

	phaseDuration *prometheus.HistogramVec

	retriesTotal        *prometheus.CounterVec
	retryBudgetDenied   *prometheus.CounterVec
	retryBudgetTokens   prometheus.Gauge
	identityCacheHits   prometheus.Counter
	identityCacheMisses prometheus.Counter
	identityRefreshes   *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec

	buildInfo *prometheus.GaugeVec
}

// NewMetricsCollector creates a collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		operationsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamelan_operations_total",
				Help: "Total number of operation invocations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		operationDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gamelan_operation_duration_seconds",
				Help:    "End-to-end duration of operation invocations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "outcome"},
		),
		operationsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gamelan_operations_in_flight",
				Help: "Number of operation invocations currently executing",
			},
			[]string{"operation"},
		),
		phaseDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gamelan_phase_duration_seconds",
				Help:    "Duration of orchestrator phases in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamelan_retries_total",
				Help: "Total number of retried attempts by error kind",
			},
			[]string{"operation", "kind"},
		),
		retryBudgetDenied: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamelan_retry_budget_denied_total",
				Help: "Total number of retries denied by the token budget",
			},
			[]string{"operation"},
		),
		retryBudgetTokens: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "gamelan_retry_budget_tokens",
				Help: "Current number of tokens in the retry budget",
			},
		),
		identityCacheHits: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "gamelan_identity_cache_hits_total",
				Help: "Total number of identity resolutions served from cache",
			},
		),
		identityCacheMisses: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "gamelan_identity_cache_misses_total",
				Help: "Total number of identity resolutions that waited on a refresh",
			},
		),
		identityRefreshes: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamelan_identity_refreshes_total",
				Help: "Total number of identity provider calls by refresh mode",
			},
			[]string{"mode"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gamelan_errors_total",
				Help: "Total number of classified errors by type",
			},
			[]string{"type", "operation"},
		),
		buildInfo: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gamelan_build_info",
				Help: "Build metadata of the gamelan library, value fixed at 1",
			},
			[]string{"version", "commit", "go_version"},
		),
	}
	mc.buildInfo.WithLabelValues(Version, GitCommit, GoVersion).Set(1)
	return mc
}

// RecordOperation records an invocation outcome and its duration.
func (mc *MetricsCollector) RecordOperation(operation, outcome string, duration time.Duration) {
	if mc == nil {
		return
	}
	mc.operationsTotal.WithLabelValues(operation, outcome).Inc()
	mc.operationDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// RecordOperationStart increments the in-flight gauge.
func (mc *MetricsCollector) RecordOperationStart(operation string) {
	if mc == nil {
		return
	}
	mc.operationsInFlight.WithLabelValues(operation).Inc()
}

// RecordOperationEnd decrements the in-flight gauge.
func (mc *MetricsCollector) RecordOperationEnd(operation string) {
	if mc == nil {
		return
	}
	mc.operationsInFlight.WithLabelValues(operation).Dec()
}

// RecordPhase records one phase transition's duration.
func (mc *MetricsCollector) RecordPhase(phase Phase, duration time.Duration) {
	if mc == nil {
		return
	}
	mc.phaseDuration.WithLabelValues(string(phase)).Observe(duration.Seconds())
}

// RecordRetry increments the retry counter for an error kind.
func (mc *MetricsCollector) RecordRetry(operation string, kind ErrorKind) {
	if mc == nil {
		return
	}
	mc.retriesTotal.WithLabelValues(operation, kind.String()).Inc()
}

// RecordRetryBudgetDenied increments the budget-denied counter.
func (mc *MetricsCollector) RecordRetryBudgetDenied(operation string) {
	if mc == nil {
		return
	}
	mc.retryBudgetDenied.WithLabelValues(operation).Inc()
}

// RecordRetryBudgetTokens sets the token budget gauge.
func (mc *MetricsCollector) RecordRetryBudgetTokens(tokens int64) {
	if mc == nil {
		return
	}
	mc.retryBudgetTokens.Set(float64(tokens))
}

// RecordIdentityCacheHit increments the identity cache hit counter.
func (mc *MetricsCollector) RecordIdentityCacheHit() {
	if mc == nil {
		return
	}
	mc.identityCacheHits.Inc()
}

// RecordIdentityCacheMiss increments the identity cache miss counter.
func (mc *MetricsCollector) RecordIdentityCacheMiss() {
	if mc == nil {
		return
	}
	mc.identityCacheMisses.Inc()
}

// RecordIdentityRefresh increments the refresh counter; mode is "blocking"
// or "background".
func (mc *MetricsCollector) RecordIdentityRefresh(mode string) {
	if mc == nil {
		return
	}
	mc.identityRefreshes.WithLabelValues(mode).Inc()
}

// RecordError increments the classified error counter.
func (mc *MetricsCollector) RecordError(errorType, operation string) {
	if mc == nil {
		return
	}
	mc.errorsTotal.WithLabelValues(errorType, operation).Inc()
}
