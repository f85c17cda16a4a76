package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tiered store counters
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Total number of tiered cache lookups",
		},
		[]string{"source"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of tiered cache hits",
		},
		[]string{"level"}, // "fast" or "persistent"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of tiered cache misses",
		},
		[]string{"source"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_errors_total",
			Help: "Total number of cache tier errors",
		},
		[]string{"level", "kind"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of expired entries evicted",
		},
		[]string{"level", "reason"},
	)

	CacheOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_operation_duration_seconds",
			Help:    "Duration of tiered cache operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Number of entries held by a cache tier",
		},
		[]string{"level"},
	)

	CacheUsed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_used_bytes",
			Help: "Approximate serialized bytes held by a cache tier",
		},
		[]string{"level"},
	)

	CachePersistentAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_persistent_available",
			Help: "1 when the persistent cache tier is usable",
		},
	)

	// Interception agent
	AgentResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_responses_total",
			Help: "Responses served by the interception agent",
		},
		[]string{"strategy", "source"}, // source: network, partition, fallback, passthrough
	)

	AgentFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_fallbacks_total",
			Help: "Offline fallbacks served by the interception agent",
		},
		[]string{"kind"}, // root or unavailable
	)

	AgentRevalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_revalidations_total",
			Help: "Background revalidations by outcome",
		},
		[]string{"result"},
	)

	AgentPartitionsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_partitions_deleted_total",
			Help: "Obsolete partitions deleted on activation",
		},
	)

	AgentSnapshotsCleaned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_snapshots_cleaned_total",
			Help: "Snapshots removed by cache cleanup messages",
		},
	)

	AgentState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agent_state",
			Help: "1 for the current lifecycle state of each agent version",
		},
		[]string{"version", "state"},
	)

	// Upstream
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Upstream fetches by outcome",
		},
		[]string{"result"}, // ok, http_error, network_error, breaker_open
	)

	UpstreamDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Duration of upstream fetches",
			Buckets: prometheus.DefBuckets,
		},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "upstream_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	Online = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "connectivity_online",
			Help: "1 when the upstream is reachable",
		},
	)

	// Offline write queue
	QueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "offline_queue_length",
			Help: "Mutations waiting for replay",
		},
	)

	QueueDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_queue_deliveries_total",
			Help: "Replay attempts by outcome",
		},
		[]string{"result"},
	)

	QueuePruned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_queue_pruned_total",
			Help: "Persisted records removed by age",
		},
		[]string{"kind"}, // mutation or record
	)
)

// RecordCacheRequest records a tiered cache lookup
func RecordCacheRequest(source string) {
	CacheRequests.WithLabelValues(source).Inc()
}

// RecordCacheHit records a hit served by the given tier
func RecordCacheHit(level string) {
	CacheHits.WithLabelValues(level).Inc()
}

// RecordCacheMiss records a miss in every tier
func RecordCacheMiss(source string) {
	CacheMisses.WithLabelValues(source).Inc()
}

// RecordCacheError records a tier failure
func RecordCacheError(level, kind string) {
	CacheErrors.WithLabelValues(level, kind).Inc()
}

// RecordCacheEviction records evicted entries
func RecordCacheEviction(level, reason string, n int) {
	CacheEvictions.WithLabelValues(level, reason).Add(float64(n))
}

// UpdateTierUsage updates entry count and size gauges for a tier
func UpdateTierUsage(level string, entries int, used int64) {
	CacheEntries.WithLabelValues(level).Set(float64(entries))
	CacheUsed.WithLabelValues(level).Set(float64(used))
}

// SetPersistentAvailable records persistent tier availability
func SetPersistentAvailable(ok bool) {
	CachePersistentAvailable.Set(boolToFloat(ok))
}

// TimeCacheOperation returns a timer function for measuring a tiered cache operation
func TimeCacheOperation(operation string) func() {
	timer := prometheus.NewTimer(CacheOperationDuration.WithLabelValues(operation))
	return func() {
		timer.ObserveDuration()
	}
}

// RecordAgentResponse records how the agent answered a request
func RecordAgentResponse(strategy, source string) {
	AgentResponses.WithLabelValues(strategy, source).Inc()
}

// RecordAgentFallback records an offline fallback
func RecordAgentFallback(kind string) {
	AgentFallbacks.WithLabelValues(kind).Inc()
}

// RecordRevalidation records a background revalidation outcome
func RecordRevalidation(result string) {
	AgentRevalidations.WithLabelValues(result).Inc()
}

// RecordPartitionsDeleted records obsolete partitions removed on activation
func RecordPartitionsDeleted(n int) {
	AgentPartitionsDeleted.Add(float64(n))
}

// RecordSnapshotsCleaned records snapshots removed by cleanup
func RecordSnapshotsCleaned(n int) {
	AgentSnapshotsCleaned.Add(float64(n))
}

// SetAgentState marks state as current for version and clears the others
func SetAgentState(version string, state string, all []string) {
	for _, s := range all {
		AgentState.WithLabelValues(version, s).Set(boolToFloat(s == state))
	}
}

// RecordUpstream records an upstream fetch outcome
func RecordUpstream(result string) {
	UpstreamRequests.WithLabelValues(result).Inc()
}

// TimeUpstream returns a timer function for an upstream fetch
func TimeUpstream() func() {
	timer := prometheus.NewTimer(UpstreamDuration)
	return func() {
		timer.ObserveDuration()
	}
}

// SetBreakerState records the circuit breaker state
func SetBreakerState(name string, state int) {
	BreakerState.WithLabelValues(name).Set(float64(state))
}

// SetOnline records connectivity
func SetOnline(online bool) {
	Online.Set(boolToFloat(online))
}

// SetQueueLength records the offline queue length
func SetQueueLength(n int) {
	QueueLength.Set(float64(n))
}

// RecordDelivery records a replay attempt outcome
func RecordDelivery(result string) {
	QueueDeliveries.WithLabelValues(result).Inc()
}

// RecordPruned records persisted records removed by age
func RecordPruned(kind string, n int64) {
	QueuePruned.WithLabelValues(kind).Add(float64(n))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
