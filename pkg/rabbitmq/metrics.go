package rabbitmq

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts producer and consumer outcomes. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	published *prometheus.CounterVec
	received  *prometheus.CounterVec
}

// NewMetrics registers the broker counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Lifecycle events handed to the broker, by event type and result.",
		}, []string{"event_type", "result"}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_received_total",
			Help: "Deliveries settled by the consumer, by settlement.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.published, m.received)
	return m
}

func (m *Metrics) observePublish(eventType, result string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) observeSettle(result string) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(result).Inc()
}
