package state

import "github.com/prometheus/client_golang/prometheus"

var _ prometheus.Collector = (*Metrics)(nil)

type Metrics struct {
	ChatRequests          prometheus.Counter
	ChatErrors            prometheus.Counter
	RetrievalDegradations prometheus.Counter
	ContextInjections     prometheus.Counter
	RequestDuration       prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		ChatRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ragproxy",
			Subsystem: "core",
			Name:      "chat_requests_total",
			Help:      "Total number of chat requests handled",
		}),
		ChatErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ragproxy",
			Subsystem: "core",
			Name:      "chat_errors_total",
			Help:      "Total number of chat requests that failed",
		}),
		RetrievalDegradations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ragproxy",
			Subsystem: "core",
			Name:      "retrieval_degradations_total",
			Help:      "Total number of retrieval calls that degraded to no context",
		}),
		ContextInjections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ragproxy",
			Subsystem: "core",
			Name:      "context_injections_total",
			Help:      "Total number of chat requests that had context injected",
		}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragproxy",
			Subsystem: "core",
			Name:      "request_duration_seconds",
			Help:      "Wall-clock duration of chat requests",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(c chan<- prometheus.Metric) {
	m.ChatRequests.Collect(c)
	m.ChatErrors.Collect(c)
	m.RetrievalDegradations.Collect(c)
	m.ContextInjections.Collect(c)
	m.RequestDuration.Collect(c)
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(d chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(m, d)
}
