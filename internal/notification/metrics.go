package notification

import (
	"usernotify/pkg/models"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts dispatch outcomes. A nil *Metrics records nothing.
type Metrics struct {
	notifications *prometheus.CounterVec
}

// NewMetrics registers the notification counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Lifecycle notifications by event type and outcome.",
		}, []string{"event_type", "outcome"}),
	}
	reg.MustRegister(m.notifications)
	return m
}

func (m *Metrics) observe(t models.EventType, o Outcome) {
	if m == nil {
		return
	}
	label := string(t)
	if !t.IsKnown() {
		label = "unknown"
	}
	m.notifications.WithLabelValues(label, string(o)).Inc()
}
