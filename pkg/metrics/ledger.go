package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics counts balance mutations by kind and outcome.
type LedgerMetrics struct {
	transactions *prometheus.CounterVec
	volume       *prometheus.CounterVec
	retries      prometheus.Counter
	drift        *prometheus.GaugeVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	transactions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_transactions_total",
		Help:      "Ledger apply attempts by kind and outcome.",
	}, []string{"kind", "outcome"})
	volume := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_succeeded_amount_total",
		Help:      "Sum of succeeded transaction amounts in rupiah.",
	}, []string{"kind"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_conflict_retries_total",
		Help:      "Ledger units retried after a concurrency conflict.",
	})
	drift := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ledger_reconcile_members",
		Help:      "Members checked and members drifting in the last reconcile run.",
	}, []string{"state"})
	reg.MustRegister(transactions, volume, retries, drift)
	return &LedgerMetrics{
		transactions: transactions,
		volume:       volume,
		retries:      retries,
		drift:        drift,
	}
}

// ObserveApply records one finished apply. outcome is the transaction status
// for written records or the error code for rejected requests.
func (l *LedgerMetrics) ObserveApply(kind, outcome string, amount int64, succeeded bool) {
	if l == nil || l.transactions == nil {
		return
	}
	l.transactions.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
	if succeeded && amount > 0 {
		l.volume.WithLabelValues(normalizeLabel(kind)).Add(float64(amount))
	}
}

// IncConflictRetry counts one retried unit of work.
func (l *LedgerMetrics) IncConflictRetry() {
	if l == nil || l.retries == nil {
		return
	}
	l.retries.Inc()
}

// SetReconcileResult publishes the size of the last reconcile pass.
func (l *LedgerMetrics) SetReconcileResult(checked, drifting int) {
	if l == nil || l.drift == nil {
		return
	}
	l.drift.WithLabelValues("checked").Set(float64(checked))
	l.drift.WithLabelValues("drifting").Set(float64(drifting))
}
