/*
Package metrics defines the Prometheus collectors exported by the relay.

All collectors live on a dedicated registry so tests can create independent
instances. A nil *Metrics is valid and records nothing.
*/
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relaychat"

// Message scopes used as the "scope" label.
const (
	ScopePublic  = "public"
	ScopePrivate = "private"
)

// Metrics holds the relay collectors and the registry they are registered on.
type Metrics struct {
	registry *prometheus.Registry

	eventsReceived   *prometheus.CounterVec
	messagesRelayed  *prometheus.CounterVec
	deliveries       prometheus.Counter
	droppedDelivery  prometheus.Counter
	storageFailures  prometheus.Counter
	connections      prometheus.Gauge
	onlineIdentities prometheus.Gauge
}

// New creates the collectors and registers them, together with the Go runtime
// and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		eventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Inbound WebSocket events by type.",
		}, []string{"type"}),

		messagesRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_relayed_total",
			Help:      "Messages persisted and dispatched, by scope.",
		}, []string{"scope"}),

		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Frames queued to a connection.",
		}),

		droppedDelivery: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_dropped_total",
			Help:      "Frames dropped because the connection's send buffer was full or closed.",
		}),

		storageFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_failures_total",
			Help:      "Messages rejected because the store failed to persist them.",
		}),

		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open WebSocket connections.",
		}),

		onlineIdentities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_identities",
			Help:      "Identities currently registered.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.eventsReceived,
		m.messagesRelayed,
		m.deliveries,
		m.droppedDelivery,
		m.storageFailures,
		m.connections,
		m.onlineIdentities,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) EventReceived(eventType string) {
	if m == nil {
		return
	}
	m.eventsReceived.WithLabelValues(eventType).Inc()
}

func (m *Metrics) MessageRelayed(private bool) {
	if m == nil {
		return
	}
	scope := ScopePublic
	if private {
		scope = ScopePrivate
	}
	m.messagesRelayed.WithLabelValues(scope).Inc()
}

// Delivered counts one queued frame, or one dropped frame when ok is false.
func (m *Metrics) Delivered(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.deliveries.Inc()
		return
	}
	m.droppedDelivery.Inc()
}

func (m *Metrics) StorageFailed() {
	if m == nil {
		return
	}
	m.storageFailures.Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

func (m *Metrics) SetOnline(n int) {
	if m == nil {
		return
	}
	m.onlineIdentities.Set(float64(n))
}
