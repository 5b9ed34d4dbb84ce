package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

var (
	registerOnce sync.Once

	workerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deltaxpc",
			Subsystem: "worker",
			Name:      "requests_total",
			Help:      "Extension invocations by final outcome.",
		},
		[]string{"outcome"},
	)
	rpcCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deltaxpc",
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "Remote calls issued or received on a channel.",
		},
		[]string{"direction", "method"},
	)
	rpcReplyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "deltaxpc",
			Subsystem: "rpc",
			Name:      "reply_duration_seconds",
			Help:      "Time from issuing a call to receiving its reply.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deltaxpc",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests served by the worker's HTTP surface.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "deltaxpc",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	rpcChannelErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "deltaxpc",
			Subsystem: "rpc",
			Name:      "channel_errors_total",
			Help:      "Channels invalidated by transport errors.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(workerRequests, rpcCalls, rpcReplyDuration, rpcChannelErrors, httpRequests, httpDuration)
	})
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func RecordRequest(outcome string) {
	RegisterMetrics()
	workerRequests.WithLabelValues(outcome).Inc()
}

// RecordCall counts one call; method is "Interface.method".
func RecordCall(direction, method string) {
	RegisterMetrics()
	rpcCalls.WithLabelValues(direction, method).Inc()
}

func RecordReply(method string, duration time.Duration) {
	RegisterMetrics()
	rpcReplyDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func RecordChannelError() {
	RegisterMetrics()
	rpcChannelErrors.Inc()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
