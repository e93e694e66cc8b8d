// Package metrics exposes prometheus collectors for the demo service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors groups every metric the service records.
type Collectors struct {
	UploadsTotal       *prometheus.CounterVec
	AnalysesStarted    prometheus.Counter
	AnalysesResolved   *prometheus.CounterVec
	AnalysesDiscarded  prometheus.Counter
	Confidence         *prometheus.HistogramVec
	ActiveSessions     prometheus.Gauge
	NotificationsTotal *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil registerer
// leaves them unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		UploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deepguard_uploads_total",
			Help: "Upload declarations by validation outcome",
		}, []string{"outcome"}),

		AnalysesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deepguard_analyses_started_total",
			Help: "Analysis runs scheduled",
		}),

		AnalysesResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deepguard_analyses_resolved_total",
			Help: "Analysis runs that produced a result, by label",
		}, []string{"label"}),

		AnalysesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deepguard_analyses_discarded_total",
			Help: "Analysis runs superseded before their timer fired",
		}),

		Confidence: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deepguard_confidence_percent",
			Help:    "Reported confidence of resolved analyses",
			Buckets: []float64{85, 88, 90, 92, 94, 96, 98, 100},
		}, []string{"label"}),

		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "deepguard_active_sessions",
			Help: "Demo sessions currently held in memory",
		}),

		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deepguard_notifications_total",
			Help: "Notifications emitted, by variant",
		}, []string{"variant"}),
	}

	if reg != nil {
		reg.MustRegister(
			c.UploadsTotal,
			c.AnalysesStarted,
			c.AnalysesResolved,
			c.AnalysesDiscarded,
			c.Confidence,
			c.ActiveSessions,
			c.NotificationsTotal,
		)
	}

	return c
}

// Nop returns unregistered collectors.
func Nop() *Collectors {
	return New(nil)
}
