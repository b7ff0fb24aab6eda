package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PushTypeNewRecord is the only push message type the dashboard acts on.
const PushTypeNewRecord = "new_weather_record"

var (
	registry *prometheus.Registry

	// Backend call rate by endpoint and outcome. Watch for: error vs success ratio.
	BackendCallsTotal *prometheus.CounterVec

	// Backend latency per call. Watch for: p95 approaching backend.timeout.
	BackendCallDuration *prometheus.HistogramVec

	// Refresh cycles started, by trigger (mount, timer, push, manual).
	RefreshTriggersTotal *prometheus.CounterVec

	// Refresh cycles currently in flight. Values > 1 mean overlapping cycles.
	RefreshInFlight prometheus.Gauge

	// Silent background fetch failures by slot (records, stats). Stale data stays on screen.
	FetchFailuresTotal *prometheus.CounterVec

	// Slot responses discarded because a newer cycle already applied.
	StaleResponsesTotal *prometheus.CounterVec

	// Push messages received by type (new_weather_record; everything else is "other").
	PushMessagesTotal *prometheus.CounterVec

	// Lookup outcomes (found, not_found, validation).
	LookupsTotal *prometheus.CounterVec

	// Status server request rate.
	HTTPRequestsTotal *prometheus.CounterVec

	// Status server latency.
	HTTPRequestDuration *prometheus.HistogramVec

	// Status server requests currently being served.
	HTTPRequestsInFlight prometheus.Gauge

	// Status server rate limit denials.
	RateLimitDeniedTotal prometheus.Counter

	// Requests still in flight when shutdown began.
	ShutdownInFlightRequests prometheus.Gauge
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	BackendCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backendCallsTotal",
			Help: "Total number of weather backend calls",
		},
		[]string{"endpoint", "status"},
	)
	BackendCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backendCallDurationSeconds",
			Help:    "Weather backend latency in seconds (per call)",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "status"},
	)
	RefreshTriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboardRefreshTriggersTotal",
			Help: "Dashboard refresh cycles started, by trigger",
		},
		[]string{"trigger"},
	)
	RefreshInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboardRefreshInFlight",
			Help: "Dashboard refresh cycles currently in flight",
		},
	)
	FetchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboardFetchFailuresTotal",
			Help: "Background dashboard fetch failures, by slot",
		},
		[]string{"slot"},
	)
	StaleResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboardStaleResponsesTotal",
			Help: "Dashboard responses discarded because a newer cycle already applied, by slot",
		},
		[]string{"slot"},
	)
	PushMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushMessagesTotal",
			Help: "Push messages received, by type (unknown types use type=other)",
		},
		[]string{"type"},
	)
	LookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookupsTotal",
			Help: "Record lookups, by outcome",
		},
		[]string{"outcome"},
	)
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of status server HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "Status server request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of status server requests currently being served",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of status server requests denied by rate limiter (429)",
		},
	)

	ShutdownInFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shutdownInFlightRequests",
			Help: "Status server requests in flight when graceful shutdown started",
		},
	)

	registry.MustRegister(
		BackendCallsTotal, BackendCallDuration,
		RefreshTriggersTotal, RefreshInFlight,
		FetchFailuresTotal, StaleResponsesTotal,
		PushMessagesTotal, LookupsTotal,
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		RateLimitDeniedTotal, ShutdownInFlightRequests,
	)
}

// RecordPushMessage counts a push message. The type is matched exactly, as the
// refresh filter does; anything else collapses to "other" so a chatty backend
// cannot blow up label cardinality.
func RecordPushMessage(msgType string) {
	t := "other"
	if msgType == PushTypeNewRecord {
		t = PushTypeNewRecord
	}
	PushMessagesTotal.WithLabelValues(t).Inc()
}

// RecordShutdownInFlight records how many requests were draining at shutdown.
func RecordShutdownInFlight(n int64) {
	ShutdownInFlightRequests.Set(float64(n))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
