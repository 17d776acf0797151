package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestLedgerMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)

	m.ObserveApply("purchase", "succeeded", 15000, true)
	m.ObserveApply("purchase", "succeeded", 5000, true)
	m.ObserveApply("purchase", "failed", 99999, false)
	m.ObserveApply("top_up", "LIMIT_EXCEEDED", 6000000, false)
	m.IncConflictRetry()
	m.SetReconcileResult(40, 2)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	cases := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"kartupintar_ledger_transactions_total", map[string]string{"kind": "purchase", "outcome": "succeeded"}, 2},
		{"kartupintar_ledger_transactions_total", map[string]string{"kind": "purchase", "outcome": "failed"}, 1},
		{"kartupintar_ledger_transactions_total", map[string]string{"kind": "top_up", "outcome": "LIMIT_EXCEEDED"}, 1},
		{"kartupintar_ledger_succeeded_amount_total", map[string]string{"kind": "purchase"}, 20000},
		{"kartupintar_ledger_conflict_retries_total", map[string]string{}, 1},
		{"kartupintar_ledger_reconcile_members", map[string]string{"state": "drifting"}, 2},
	}
	for _, tc := range cases {
		got, err := fetchCounter(mfs, tc.name, tc.labels)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s %v = %f, want %f", tc.name, tc.labels, got, tc.want)
		}
	}
}
