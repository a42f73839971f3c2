package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// SettlementMetrics counts remittance outcomes and the seeds they release.
type SettlementMetrics struct {
	confirmed *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	cashback  prometheus.Counter
	fundShare prometheus.Counter
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	confirmed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "remittances_confirmed_total",
		Help: "Remittances confirmed, by confirmation path.",
	}, []string{"via"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "remittances_rejected_total",
		Help: "Remittances rejected, by rejection path.",
	}, []string{"via"})
	cashback := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cashback_seeds_released_total",
		Help: "Seeds credited to spenders as cashback.",
	})
	fundShare := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "seed_fund_share_total",
		Help: "Currency units added to seed funds.",
	})
	reg.MustRegister(confirmed, rejected, cashback, fundShare)
	return &SettlementMetrics{
		confirmed: confirmed,
		rejected:  rejected,
		cashback:  cashback,
		fundShare: fundShare,
	}
}

// ObserveConfirmed records one confirmation and its shares.
func (m *SettlementMetrics) ObserveConfirmed(via string, cashbackSeeds int64, fundShare decimal.Decimal) {
	if m == nil || m.confirmed == nil {
		return
	}
	m.confirmed.WithLabelValues(normalizeLabel(via)).Inc()
	m.cashback.Add(float64(cashbackSeeds))
	m.fundShare.Add(fundShare.InexactFloat64())
}

// IncRejected records one rejection.
func (m *SettlementMetrics) IncRejected(via string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(via)).Inc()
}
