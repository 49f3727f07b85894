// File: internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "relaychat"

// Metrics groups the collectors the controller and bootstrap report to.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	created       *prometheus.CounterVec
	failures      *prometheus.CounterVec
	bootstrapRows *prometheus.CounterVec
	entities      *prometheus.GaugeVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		created: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_created_total",
			Help:      "Entities accepted by the controller, by kind.",
		}, []string{"kind"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "create_failures_total",
			Help:      "Rejected creations, by kind and reason.",
		}, []string{"kind", "reason"}),
		bootstrapRows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bootstrap_rows_total",
			Help:      "Persisted rows replayed at startup, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		entities: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_entities",
			Help:      "Entities currently held by the in-memory model.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) EntityCreated(kind string) {
	if m == nil {
		return
	}
	m.created.WithLabelValues(kind).Inc()
	m.entities.WithLabelValues(kind).Inc()
}

func (m *Metrics) CreateFailed(kind, reason string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) BootstrapRow(kind, outcome string) {
	if m == nil {
		return
	}
	m.bootstrapRows.WithLabelValues(kind, outcome).Inc()
}
