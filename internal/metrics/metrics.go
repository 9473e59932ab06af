// Package metrics exposes Prometheus counters for pipeline data quality and pass outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pooldesk"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	TradesSkipped       *prometheus.CounterVec
	CandlesBuilt        prometheus.Counter
	GapFillers          *prometheus.CounterVec
	IdentityResolutions *prometheus.CounterVec
	PagesFetched        *prometheus.CounterVec
	FetchErrors         *prometheus.CounterVec
	ReconcileRuns       *prometheus.CounterVec
	SnapshotPools       *prometheus.GaugeVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TradesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "candle",
			Name:      "trades_skipped_total",
			Help:      "Trades skipped during aggregation by reason",
		}, []string{"reason"}),
		CandlesBuilt: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "candle",
			Name:      "candles_built_total",
			Help:      "Candles produced from trade records",
		}),
		GapFillers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "candle",
			Name:      "gap_fillers_total",
			Help:      "Synthetic candles inserted by fill policy",
		}, []string{"policy"}),
		IdentityResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "resolutions_total",
			Help:      "Token icon resolutions by outcome",
		}, []string{"outcome"}),
		PagesFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "pages_fetched_total",
			Help:      "Upstream pages fetched by source",
		}, []string{"source"}),
		FetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "fetch_errors_total",
			Help:      "Upstream page fetch attempts that failed",
		}, []string{"source"}),
		ReconcileRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Daily reconciliation passes by result",
		}, []string{"result"}),
		SnapshotPools: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "snapshot_pools",
			Help:      "Pool count of the last persisted snapshot per date",
		}, []string{"date"}),
	}
}

func (m *Metrics) TradeSkipped(reason string) {
	if m == nil {
		return
	}
	m.TradesSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) CandlesAdded(n int) {
	if m == nil {
		return
	}
	m.CandlesBuilt.Add(float64(n))
}

func (m *Metrics) GapFilled(policy string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.GapFillers.WithLabelValues(policy).Add(float64(n))
}

func (m *Metrics) IdentityResolved(outcome string) {
	if m == nil {
		return
	}
	m.IdentityResolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PageFetched(source string) {
	if m == nil {
		return
	}
	m.PagesFetched.WithLabelValues(source).Inc()
}

func (m *Metrics) FetchFailed(source string) {
	if m == nil {
		return
	}
	m.FetchErrors.WithLabelValues(source).Inc()
}

func (m *Metrics) ReconcileFinished(result string) {
	if m == nil {
		return
	}
	m.ReconcileRuns.WithLabelValues(result).Inc()
}

func (m *Metrics) SnapshotPersisted(date string, pools int) {
	if m == nil {
		return
	}
	m.SnapshotPools.WithLabelValues(date).Set(float64(pools))
}
