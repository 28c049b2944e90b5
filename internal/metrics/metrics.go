// README: Prometheus collectors for providers, the quote cache, search and sessions.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rideflow_provider_calls_total",
			Help: "Total number of external provider calls",
		},
		[]string{"provider", "op", "status"},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rideflow_provider_call_duration_seconds",
			Help:    "External provider call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "op"},
	)

	StaleResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rideflow_stale_results_total",
			Help: "Async results discarded because their request was superseded",
		},
		[]string{"component"},
	)

	QuoteFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rideflow_quote_fetches_total",
			Help: "Quote fetches by trigger and outcome",
		},
		[]string{"trigger", "status"},
	)

	SuggestionFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rideflow_suggestion_fetches_total",
			Help: "Place suggestion lookups by outcome",
		},
		[]string{"status"},
	)

	RouteCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rideflow_route_cache_total",
			Help: "Shared route cache lookups",
		},
		[]string{"result"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rideflow_active_sessions",
			Help: "Current number of open quote sessions",
		},
	)

	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rideflow_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rideflow_websocket_connections",
			Help: "Current number of open quote streams",
		},
	)
)

// ObserveProviderCall records one provider call.
func ObserveProviderCall(provider, op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ProviderCallsTotal.WithLabelValues(provider, op, status).Inc()
	ProviderCallDuration.WithLabelValues(provider, op).Observe(time.Since(start).Seconds())
}

func ObserveHTTPRequest(method, path string, status int) {
	HttpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}
