package gateway

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ahrav/policybot/internal/domain"
)

// Metrics counts query outcomes by producer so operators can see how often
// answers degrade to the fallback or timeout path.
type Metrics struct {
	queries  prometheus.Counter
	answers  *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics registers the gateway collectors with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "policybot_queries_total",
			Help: "Queries submitted to the gateway.",
		}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policybot_answers_total",
			Help: "Answers delivered, by producer (model, fallback, timeout).",
		}, []string{"producer"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "policybot_query_duration_seconds",
			Help:    "End-to-end query latency.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 11),
		}),
	}
	reg.MustRegister(m.queries, m.answers, m.duration)
	return m
}

func (m *Metrics) submitted() {
	m.queries.Inc()
}

func (m *Metrics) delivered(a domain.Answer) {
	m.answers.WithLabelValues(a.ProducedBy).Inc()
	m.duration.Observe(a.Elapsed.Seconds())
}
