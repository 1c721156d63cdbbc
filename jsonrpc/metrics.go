package jsonrpc

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks outbound JSON-RPC calls. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewMetrics registers the client metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "svclient_rpc_requests_total",
			Help: "Total JSON-RPC requests sent, by method",
		}, []string{"method"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "svclient_rpc_errors_total",
			Help: "Total JSON-RPC requests that failed, by method and error code",
		}, []string{"method", "code"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "svclient_rpc_latency_seconds",
			Help:    "Latency of JSON-RPC requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method"}),
	}
}

// observe records one finished call. code is the JSON-RPC error code, or -1
// for transport failures, and is ignored when ok is true.
func (m *Metrics) observe(method string, start time.Time, ok bool, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method).Inc()
	m.latency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if !ok {
		m.errors.WithLabelValues(method, strconv.Itoa(code)).Inc()
	}
}
