package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CrushMetrics counts submission outcomes, match notifications and resolver
// anomalies.
type CrushMetrics struct {
	submissions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	anomalies     prometheus.Counter
}

// NewCrushMetrics registers the crush metrics on reg. A nil registerer yields
// a no-op recorder.
func NewCrushMetrics(reg prometheus.Registerer) *CrushMetrics {
	if reg == nil {
		return &CrushMetrics{}
	}
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crush_submissions_total",
		Help: "Crush submissions by outcome.",
	}, []string{"outcome"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crush_match_notifications_total",
		Help: "Match notification attempts by result.",
	}, []string{"result"})
	anomalies := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crush_resolve_anomalies_total",
		Help: "Resolves that found more than one reciprocal pending record.",
	})
	reg.MustRegister(submissions, notifications, anomalies)
	return &CrushMetrics{
		submissions:   submissions,
		notifications: notifications,
		anomalies:     anomalies,
	}
}

func (m *CrushMetrics) IncSubmission(outcome string) {
	if m == nil || m.submissions == nil {
		return
	}
	m.submissions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *CrushMetrics) IncNotification(result string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *CrushMetrics) IncResolveAnomaly() {
	if m == nil || m.anomalies == nil {
		return
	}
	m.anomalies.Inc()
}
