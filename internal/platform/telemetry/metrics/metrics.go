package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "followgraph"

// Delivery outcomes recorded by the live dispatcher.
const (
	OutcomeDelivered = "delivered"
	OutcomeOffline   = "offline"
	OutcomeFailed    = "failed"
	OutcomeRelayed   = "relayed"
)

// Transition results recorded by the relationship mutator.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds Prometheus collectors for one server.
type Metrics struct {
	registry *prometheus.Registry

	Transitions     *prometheus.CounterVec
	LiveEvents      *prometheus.CounterVec
	LiveConnections prometheus.Gauge
}

// New creates a Metrics value backed by a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relationship_transitions_total",
				Help:      "Relationship operations by operation and result.",
			},
			[]string{"op", "result"},
		),
		LiveEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "live_events_total",
				Help:      "Live notification deliveries by event and outcome.",
			},
			[]string{"event", "outcome"},
		),
		LiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "live_connections",
				Help:      "Registered live connections.",
			},
		),
	}
}

// ObserveTransition counts one relationship operation. Safe on a nil receiver.
func (m *Metrics) ObserveTransition(op string, err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.Transitions.WithLabelValues(op, result).Inc()
}

// ObserveLiveEvent counts one delivery attempt. Safe on a nil receiver.
func (m *Metrics) ObserveLiveEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.LiveEvents.WithLabelValues(event, outcome).Inc()
}

// SetLiveConnections records the registry size. Safe on a nil receiver.
func (m *Metrics) SetLiveConnections(n int) {
	if m == nil {
		return
	}
	m.LiveConnections.Set(float64(n))
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
