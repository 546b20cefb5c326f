package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "im_realtime"

// Routing outcomes.
const (
	OutcomeDelivered = "delivered"
	OutcomeNotified  = "notified"
	OutcomeFailed    = "failed"
	OutcomeDropped   = "dropped"
)

// Relay directions.
const (
	RelayOut = "out"
	RelayIn  = "in"
)

// Metrics holds all Prometheus collectors of the service.
// Every helper is safe on a nil receiver so components can run without metrics.
type Metrics struct {
	ConnectionsTotal  prometheus.Counter
	ActiveConnections prometheus.Gauge
	OnlineUsers       prometheus.Gauge
	InboundEvents     *prometheus.CounterVec
	MessagesRouted    *prometheus.CounterVec
	CallSignalsRouted *prometheus.CounterVec
	Notifications     *prometheus.CounterVec
	PresenceBroadcast prometheus.Counter
	RateLimited       prometheus.Counter
	RelayedFrames     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		ConnectionsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total websocket connections registered",
		}),
		ActiveConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Current live connections",
		}),
		OnlineUsers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
			Help:      "Users with at least one live connection",
		}),
		InboundEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_events_total",
			Help:      "Inbound client events by name",
		}, []string{"event"}),
		MessagesRouted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_routed_total",
			Help:      "Routed messages by outcome",
		}, []string{"outcome"}),
		CallSignalsRouted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_signals_routed_total",
			Help:      "Relayed call signals by type and outcome",
		}, []string{"type", "outcome"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification gateway calls by kind and result",
		}, []string{"kind", "result"}),
		PresenceBroadcast: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_broadcasts_total",
			Help:      "Presence changes broadcast as a full online set",
		}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_events_total",
			Help:      "Inbound events rejected by the per-connection limiter",
		}),
		RelayedFrames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relayed_frames_total",
			Help:      "Frames exchanged with other nodes by direction and result",
		}, []string{"direction", "result"}),
	}
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.ConnectionsTotal.Inc()
	m.ActiveConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.ActiveConnections.Dec()
}

func (m *Metrics) Inbound(event string) {
	if m == nil {
		return
	}
	m.InboundEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) MessageRouted(outcome string) {
	if m == nil {
		return
	}
	m.MessagesRouted.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CallSignalRouted(signalType, outcome string) {
	if m == nil {
		return
	}
	m.CallSignalsRouted.WithLabelValues(signalType, outcome).Inc()
}

func (m *Metrics) Notified(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Notifications.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) PresenceChanged(joined, left int) {
	if m == nil {
		return
	}
	m.PresenceBroadcast.Inc()
	m.OnlineUsers.Add(float64(joined - left))
}

func (m *Metrics) Limited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

func (m *Metrics) Relayed(direction string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.RelayedFrames.WithLabelValues(direction, result).Inc()
}
