package metrics

import (
	"time"

	"donation-ledger/pkg/domain"
	dErrors "donation-ledger/pkg/domain-errors"
	"donation-ledger/pkg/money"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the lifecycle engine.
type Metrics struct {
	Operations       *prometheus.CounterVec
	OperationLatency *prometheus.HistogramVec
	CampaignBalance  *prometheus.GaugeVec
}

// New registers the engine metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Lifecycle engine operations by operation and outcome code",
		}, []string{"operation", "outcome"}),
		OperationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Lifecycle engine operation latency, including lock wait",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"operation"}),
		CampaignBalance: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ledger_campaign_balance",
			Help: "Committed campaign balance after the last mutation",
		}, []string{"campaign_id"}),
	}
}

// ObserveOperation records one finished operation. A nil err counts as "ok";
// otherwise the outcome is the error code.
func (m *Metrics) ObserveOperation(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.OperationLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) SetBalance(id domain.CampaignID, balance money.Amount) {
	m.CampaignBalance.WithLabelValues(id.String()).Set(balance.Decimal().InexactFloat64())
}
