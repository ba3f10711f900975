package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal tracks completed poll cycles
	CyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_cycles_total",
			Help: "Total number of completed poll cycles",
		},
	)

	// CycleDuration tracks how long a full cycle takes
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notifier_cycle_duration_seconds",
			Help:    "Poll cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// NotificationsTotal tracks delivery attempts by result
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_notifications_total",
			Help: "Total number of notifications by result",
		},
		[]string{"result"},
	)

	// ProviderRequestsTotal tracks provider calls per endpoint
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_provider_requests_total",
			Help: "Total number of provider requests",
		},
		[]string{"endpoint", "result"},
	)

	// ProviderLatency tracks provider call latency
	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notifier_provider_latency_seconds",
			Help:    "Provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// StateSaveErrors tracks failed state writes
	StateSaveErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_state_save_errors_total",
			Help: "Total number of failed state writes",
		},
	)

	// WatchedAddresses tracks the number of registered watch entries
	WatchedAddresses = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifier_watched_addresses",
			Help: "Number of registered watch entries",
		},
	)

	// RegistrationsTotal tracks address registrations by outcome
	RegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_registrations_total",
			Help: "Total number of address registrations by result",
		},
		[]string{"result"},
	)
)
