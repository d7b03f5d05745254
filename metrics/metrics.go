package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "whiteboard"

// Broadcast kinds used as the "kind" label.
const (
	KindRelay  = "relay"
	KindSystem = "system"
	KindState  = "state"
)

// Metrics groups the collectors the server exports. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	connectionsActive prometheus.Gauge
	connectionsPruned prometheus.Counter
	broadcasts        *prometheus.CounterVec
	droppedPayloads   prometheus.Counter
	historyOps        *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of registered client connections.",
		}),
		connectionsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_pruned_total",
			Help:      "Connections removed after a failed send.",
		}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_messages_total",
			Help:      "Messages fanned out to clients, by kind.",
		}, []string{"kind"}),
		droppedPayloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_payloads_total",
			Help:      "Inbound payloads that failed to decode as a drawing operation.",
		}),
		historyOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_operations_total",
			Help:      "Commit, undo and redo calls on the history manager.",
		}, []string{"op"}),
	}
	reg.MustRegister(m.connectionsActive, m.connectionsPruned, m.broadcasts, m.droppedPayloads, m.historyOps)
	return m
}

func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.connectionsActive.Set(float64(n))
}

func (m *Metrics) ConnectionPruned() {
	if m == nil {
		return
	}
	m.connectionsPruned.Inc()
}

func (m *Metrics) Broadcast(kind string) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(kind).Inc()
}

func (m *Metrics) PayloadDropped() {
	if m == nil {
		return
	}
	m.droppedPayloads.Inc()
}

func (m *Metrics) HistoryOperation(op string) {
	if m == nil {
		return
	}
	m.historyOps.WithLabelValues(op).Inc()
}
