package virtrpc

import "github.com/prometheus/client_golang/prometheus"

// Metrics is an optional instrument set tracking in-flight calls, calls
// completed by outcome, and call latency, the same trio
// ironcore-dev-libvirt-provider and m-lab-tcp-info both wire up for a single
// RPC-shaped client. A nil *Metrics (the default) disables instrumentation
// entirely; nothing in the connection core requires a registry to function.
type Metrics struct {
	inFlight prometheus.Gauge
	calls    *prometheus.CounterVec
	latency  prometheus.Histogram
}

// outcome labels used on the calls counter.
const (
	outcomeOK             = "ok"
	outcomeRemoteError    = "remote_error"
	outcomeTransportError = "transport_error"
)

// NewMetrics builds and registers a Metrics instance against reg. Passing a
// nil reg is equivalent to not calling NewMetrics at all: WithMetrics(nil)
// leaves instrumentation disabled.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "virtrpc",
			Name:      "calls_in_flight",
			Help:      "Number of RPC calls currently awaiting a reply.",
		}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "virtrpc",
			Name:      "calls_total",
			Help:      "RPC calls completed, labeled by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "virtrpc",
			Name:      "call_latency_seconds",
			Help:      "RPC call round-trip latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.inFlight, m.calls, m.latency)
	return m
}

func (m *Metrics) callStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) callFinished(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.calls.WithLabelValues(outcome).Inc()
	m.latency.Observe(seconds)
}
