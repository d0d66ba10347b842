// Package metrics exposes Prometheus counters for the monitor, the transfer
// pipeline, and the dialogue. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "solwatch"

// Metrics groups every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	notifications *prometheus.CounterVec
	gaps          *prometheus.CounterVec
	reconnects    *prometheus.CounterVec
	subscriptions *prometheus.GaugeVec
	transfers     *prometheus.CounterVec
	dialogue      *prometheus.CounterVec
	updates       *prometheus.CounterVec
	sends         *prometheus.CounterVec
}

// New registers all collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "monitor", Name: "notifications_total",
			Help: "Balance change events emitted, per delivered watcher.",
		}, []string{"network", "kind"}),
		gaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "monitor", Name: "notification_gaps_total",
			Help: "Activity notifications dropped because transaction detail was unavailable.",
		}, []string{"network"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "monitor", Name: "feed_reconnects_total",
			Help: "Activity feed reopen attempts after a failure.",
		}, []string{"network"}),
		subscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "monitor", Name: "subscriptions",
			Help: "Live (address, network) subscriptions.",
		}, []string{"network"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "transfer", Name: "submissions_total",
			Help: "Transfer submissions by outcome.",
		}, []string{"network", "outcome"}),
		dialogue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "dialogue", Name: "events_total",
			Help: "Dialogue events by kind and outcome.",
		}, []string{"event", "outcome"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "telegram", Name: "updates_total",
			Help: "Handled Telegram updates by kind and status.",
		}, []string{"kind", "status"}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "telegram", Name: "sends_total",
			Help: "Queued outbound Telegram calls by action and outcome.",
		}, []string{"action", "outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.notifications, m.gaps, m.reconnects, m.subscriptions,
		m.transfers, m.dialogue, m.updates, m.sends,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) NotificationEmitted(network, kind string) {
	if m != nil {
		m.notifications.WithLabelValues(network, kind).Inc()
	}
}

func (m *Metrics) NotificationGap(network string) {
	if m != nil {
		m.gaps.WithLabelValues(network).Inc()
	}
}

func (m *Metrics) FeedReconnect(network string) {
	if m != nil {
		m.reconnects.WithLabelValues(network).Inc()
	}
}

func (m *Metrics) SubscriptionOpened(network string) {
	if m != nil {
		m.subscriptions.WithLabelValues(network).Inc()
	}
}

func (m *Metrics) SubscriptionClosed(network string) {
	if m != nil {
		m.subscriptions.WithLabelValues(network).Dec()
	}
}

func (m *Metrics) Transfer(network, outcome string) {
	if m != nil {
		m.transfers.WithLabelValues(network, outcome).Inc()
	}
}

func (m *Metrics) DialogueEvent(event, outcome string) {
	if m != nil {
		m.dialogue.WithLabelValues(event, outcome).Inc()
	}
}

func (m *Metrics) Update(kind, status string) {
	if m != nil {
		m.updates.WithLabelValues(kind, status).Inc()
	}
}

func (m *Metrics) Send(action, outcome string) {
	if m != nil {
		m.sends.WithLabelValues(action, outcome).Inc()
	}
}
