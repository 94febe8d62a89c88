package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions    prometheus.Gauge
	ActiveConnections prometheus.Gauge
	SessionEvents     *prometheus.CounterVec
	RelayEvents       *prometheus.CounterVec
	RelayDropped      *prometheus.CounterVec
	AuthDecisions     *prometheus.CounterVec
	ChatResponses     *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_voice_sessions",
			Help:      "Number of live voice sessions in the store.",
		}),
		ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_ws_connections",
			Help:      "Number of open signaling websocket connections.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
		RelayEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_events_total",
			Help:      "Relayed signaling events by direction and type.",
		}, []string{"direction", "type"}),
		RelayDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_dropped_total",
			Help:      "Signaling events dropped before delivery, by reason.",
		}, []string{"reason"}),
		AuthDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_decisions_total",
			Help:      "Access gate decisions by outcome.",
		}, []string{"outcome"}),
		ChatResponses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_responses_total",
			Help:      "Chat responses by backing responder.",
		}, []string{"source"}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
