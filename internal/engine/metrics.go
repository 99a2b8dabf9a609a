package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Cycles              *prometheus.CounterVec
	CycleErrors         *prometheus.CounterVec
	OrdersSubmitted     *prometheus.CounterVec
	OrdersRejected      *prometheus.CounterVec
	RiskRejections      *prometheus.CounterVec
	ReconcileMismatches prometheus.Counter
	Equity              prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hlbot_cycles_total",
			Help: "Evaluation cycles run per pair.",
		}, []string{"symbol", "strategy"}),
		CycleErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hlbot_cycle_errors_total",
			Help: "Evaluation cycles that failed per pair.",
		}, []string{"symbol", "strategy"}),
		OrdersSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hlbot_orders_submitted_total",
			Help: "Orders accepted by the venue.",
		}, []string{"symbol", "side"}),
		OrdersRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hlbot_orders_rejected_total",
			Help: "Orders that ended rejected, including exhausted retries.",
		}, []string{"symbol"}),
		RiskRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hlbot_risk_rejections_total",
			Help: "Intents the risk gates refused.",
		}, []string{"reason"}),
		ReconcileMismatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "hlbot_reconcile_mismatches_total",
			Help: "Local order beliefs corrected by exchange truth.",
		}),
		Equity: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hlbot_account_equity",
			Help: "Account equity as of the last reconcile sweep.",
		}),
	}
}
