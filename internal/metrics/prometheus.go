package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "hl_delta_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry *prometheus.Registry
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	ordersPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_placed_total",
		Help:      "Total number of leg orders placed.",
	})
	ordersFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_failed_total",
		Help:      "Total number of leg order submission failures.",
	})
	ordersCanceled := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_canceled_total",
		Help:      "Total number of unfilled legs cancelled on timeout.",
	})
	pendingResolved := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "pending_resolved_total",
		Help:      "Total number of pending dual-leg orders fully filled.",
	})
	pendingTimedOut := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "pending_timed_out_total",
		Help:      "Total number of pending dual-leg orders that hit the wait budget.",
	})
	rotations := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "rotations_total",
		Help:      "Total number of funding rotations executed.",
	})
	rebalanceWarnings := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "rebalance_warnings_total",
		Help:      "Total number of allocation drift warnings raised.",
	})

	registry.MustRegister(ordersPlaced, ordersFailed, ordersCanceled, pendingResolved, pendingTimedOut, rotations, rebalanceWarnings)

	m := &Metrics{
		OrdersPlaced:      promCounter{ordersPlaced},
		OrdersFailed:      promCounter{ordersFailed},
		OrdersCanceled:    promCounter{ordersCanceled},
		PendingResolved:   promCounter{pendingResolved},
		PendingTimedOut:   promCounter{pendingTimedOut},
		Rotations:         promCounter{rotations},
		RebalanceWarnings: promCounter{rebalanceWarnings},
	}

	return &Prometheus{
		Metrics:  m,
		registry: registry,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
