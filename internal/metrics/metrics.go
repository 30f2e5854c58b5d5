// Package metrics exposes Prometheus collectors for remote calls, synchronous
// test sessions and the local proxy server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APICalls counts remote API calls by command and status
	APICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webpagetest_api_calls_total",
			Help: "Total number of remote WebPageTest API calls",
		},
		[]string{"command", "status"},
	)

	// APICallDuration tracks remote call latency by command
	APICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webpagetest_api_call_duration_seconds",
			Help:    "Remote WebPageTest API call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"command"},
	)

	// SyncSessions counts synchronous test sessions by strategy and outcome
	SyncSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webpagetest_sync_sessions_total",
			Help: "Total number of synchronous test sessions",
		},
		[]string{"strategy", "outcome"},
	)

	// ProxyRequests counts requests served by the local proxy server
	ProxyRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webpagetest_proxy_requests_total",
			Help: "Total number of requests served by the local proxy server",
		},
		[]string{"command", "code"},
	)
)

// Status labels for calls that never produced an HTTP status
const (
	StatusDryRun = "dryrun"
	StatusError  = "error"
)

// ObserveCall records one remote call. status is an HTTP status code, or 0
// together with a non-empty label for dry runs and transport failures.
func ObserveCall(command string, status int, label string, d time.Duration) {
	if label == "" {
		label = strconv.Itoa(status)
	}
	APICalls.WithLabelValues(command, label).Inc()
	if label != StatusDryRun {
		APICallDuration.WithLabelValues(command).Observe(d.Seconds())
	}
}

// ObserveSession records how a synchronous test session ended
func ObserveSession(strategy, outcome string) {
	SyncSessions.WithLabelValues(strategy, outcome).Inc()
}

// ObserveProxy records a request handled by the local proxy server
func ObserveProxy(command string, code int) {
	ProxyRequests.WithLabelValues(command, strconv.Itoa(code)).Inc()
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
