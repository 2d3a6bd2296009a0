package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCounters(t *testing.T) {
	prom := NewPrometheus()
	prom.Metrics.OrdersPlaced.Inc()
	prom.Metrics.OrdersFailed.Inc()
	prom.Metrics.OrdersCanceled.Inc()
	prom.Metrics.PendingResolved.Inc()
	prom.Metrics.PendingTimedOut.Inc()
	prom.Metrics.Rotations.Inc()
	prom.Metrics.RebalanceWarnings.Inc()

	counters := []Counter{
		prom.Metrics.OrdersPlaced,
		prom.Metrics.OrdersFailed,
		prom.Metrics.OrdersCanceled,
		prom.Metrics.PendingResolved,
		prom.Metrics.PendingTimedOut,
		prom.Metrics.Rotations,
		prom.Metrics.RebalanceWarnings,
	}
	for i, counter := range counters {
		pc, ok := counter.(promCounter)
		if !ok {
			t.Fatalf("counter %d is not prometheus-backed", i)
		}
		if got := testutil.ToFloat64(pc.counter); got != 1 {
			t.Fatalf("counter %d expected 1, got %v", i, got)
		}
	}
}

func TestNoopMetricsDoNotPanic(t *testing.T) {
	m := NewNoop()
	m.OrdersPlaced.Inc()
	m.RebalanceWarnings.Inc()
}
