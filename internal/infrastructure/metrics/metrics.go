// Package metrics provides Prometheus metrics for the chat sync client.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/janhq/jan-chat-sync/internal/domain/chatsync"
)

var (
	// CacheLookups counts list reads per scope, split by cache hit or miss.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_cache_lookups_total",
			Help: "Total number of conversation list lookups",
		},
		[]string{"scope", "result"},
	)

	// CacheInvalidations counts invalidations by the mutation that caused them.
	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_cache_invalidations_total",
			Help: "Total number of conversation cache invalidations",
		},
		[]string{"reason"},
	)

	// OperationTransitions tracks optimistic operation state changes.
	OperationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_operation_transitions_total",
			Help: "Total number of optimistic operation state transitions",
		},
		[]string{"kind", "from_state", "to_state"},
	)

	// PendingOperations is the number of operations with a request in flight.
	PendingOperations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatsync_pending_operations",
			Help: "Number of optimistic operations awaiting the backend",
		},
	)

	// GatewayRequestDuration tracks backend round trips per operation.
	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatsync_gateway_request_duration_seconds",
			Help:    "Duration of chat backend requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)

	// BreakerState is 0 closed, 1 half-open, 2 open.
	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatsync_gateway_breaker_state",
			Help: "Circuit breaker state of the chat backend client",
		},
	)
)

// RecordGatewayRequest observes one backend round trip.
func RecordGatewayRequest(operation, outcome string, d time.Duration) {
	GatewayRequestDuration.WithLabelValues(operation, outcome).Observe(d.Seconds())
}

// RecordBreakerState publishes the breaker state as a number.
func RecordBreakerState(state int) {
	BreakerState.Set(float64(state))
}

// Observer feeds engine events into the Prometheus collectors.
type Observer struct{}

func NewObserver() Observer {
	return Observer{}
}

func (Observer) CacheLookup(scope chatsync.Scope, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(string(scope), result).Inc()
}

func (Observer) CacheInvalidated(reason string) {
	CacheInvalidations.WithLabelValues(reason).Inc()
}

func (Observer) OperationTransition(kind chatsync.OperationKind, from, to chatsync.OperationState) {
	OperationTransitions.WithLabelValues(string(kind), from.String(), to.String()).Inc()
	switch {
	case to == chatsync.StatePending:
		PendingOperations.Inc()
	case from == chatsync.StatePending && to.IsTerminal():
		PendingOperations.Dec()
	}
}

var _ chatsync.Observer = Observer{}
