package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Published    prometheus.Counter
	Failures     prometheus.Counter
	BreakerState prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_audit_outbox_published_total",
			Help: "Audit entries published downstream",
		}),
		Failures: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_audit_outbox_failures_total",
			Help: "Outbox batches that failed to publish or mark",
		}),
		BreakerState: f.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_audit_outbox_breaker_state",
			Help: "Publish breaker state (0 closed, 1 half-open, 2 open)",
		}),
	}
}
