// Package metrics declares the prometheus instruments shared across the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Redis operations
var (
	// RedisOpsTotal tracks total Redis operations by operation type and status
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks Redis operation latency in seconds
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// RedisConnectionErrors tracks Redis connection errors
	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Total Redis connection errors",
		},
	)

	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Event pipeline
var (
	// EventsPublishedTotal counts published events by variant and status
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "party_events_published_total",
			Help: "Published party events by event type and status",
		},
		[]string{"type", "status"},
	)

	// EventsRejectedTotal counts events rejected before publish
	EventsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "party_events_rejected_total",
			Help: "Events rejected before publish, by rejection reason",
		},
		[]string{"reason"},
	)

	// PublishDuration tracks append+reduce latency per publish
	PublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "party_publish_duration_seconds",
			Help:    "Duration of the append-and-reduce publish path",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// StateRebuildsTotal counts cache rebuilds from log replay
	StateRebuildsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "party_state_rebuilds_total",
			Help: "State cache rebuilds performed by replaying the event log",
		},
	)
)

// Subscriber sessions
var (
	// ActiveSubscribers tracks currently connected subscriber sessions
	ActiveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "subscriber_sessions_active",
			Help: "Currently connected subscriber sessions across all parties",
		},
	)

	// ActiveParties tracks parties with at least one subscriber
	ActiveParties = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "subscriber_parties_active",
			Help: "Parties with at least one live subscriber on this instance",
		},
	)

	// SubscribersReplacedTotal counts registrations replaced by a newer connection
	SubscribersReplacedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriber_sessions_replaced_total",
			Help: "Subscriber registrations replaced by a newer connection from the same user",
		},
	)

	// DeliveryFailuresTotal counts pushes that failed and closed a session
	DeliveryFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriber_delivery_failures_total",
			Help: "Event pushes that failed and closed the subscriber session",
		},
	)

	// EventsDeliveredTotal counts events pushed to subscribers
	EventsDeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriber_events_delivered_total",
			Help: "Events delivered to subscribers by event type",
		},
		[]string{"type"},
	)
)
