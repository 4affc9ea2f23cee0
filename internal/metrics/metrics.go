package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the counters the ledger reports. Counters are registered
// on the registerer handed to New so tests can use a private registry.
type Metrics struct {
	Operations      *prometheus.CounterVec
	PersistFailures *prometheus.CounterVec
	PublishFailures *prometheus.CounterVec
}

// New creates the ledger counters and registers them on reg. A nil reg leaves
// them unregistered, which is what a Ledger uses when no metrics are wired.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomledger",
			Name:      "operations_total",
			Help:      "Ledger operations by name and outcome.",
		}, []string{"op", "outcome"}),
		PersistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomledger",
			Name:      "persist_failures_total",
			Help:      "Room account writes that failed after an in-memory mutation.",
		}, []string{"room"}),
		PublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomledger",
			Name:      "publish_failures_total",
			Help:      "Room events that could not be published.",
		}, []string{"type"}),
	}

	if reg != nil {
		reg.MustRegister(m.Operations, m.PersistFailures, m.PublishFailures)
	}
	return m
}
