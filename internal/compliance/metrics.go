package compliance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared by every Monitor of a
// process.
type Metrics struct {
	events     *prometheus.CounterVec
	violations *prometheus.CounterVec
	pending    prometheus.Gauge
}

// NewMetrics registers the compliance collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "condense_compliance_events_total",
				Help: "Events processed by compliance monitors",
			},
			[]string{"kind"},
		),
		violations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "condense_compliance_violations_total",
				Help: "Tool-call contract violations seen on live streams",
			},
			[]string{"code"},
		),
		pending: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "condense_compliance_pending_calls",
				Help: "Tool calls issued and not yet answered",
			},
		),
	}
}
