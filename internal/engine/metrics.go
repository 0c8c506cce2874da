package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the session engine.
type Metrics struct {
	ActiveSessions   prometheus.Gauge
	ConnectedClients prometheus.Gauge
	AnswersTotal     *prometheus.CounterVec
	BroadcastsTotal  prometheus.Counter
	PersistRetries   prometheus.Counter
	SessionsEnded    *prometheus.CounterVec
}

// NewMetrics registers the engine metrics with reg. Tests pass a fresh
// registry to avoid duplicate registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "quiz",
			Subsystem: "engine",
			Name:      "active_sessions",
			Help:      "Number of live sessions resident in memory",
		}),
		ConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "quiz",
			Subsystem: "engine",
			Name:      "connected_clients",
			Help:      "Number of sockets currently subscribed to a session",
		}),
		AnswersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Subsystem: "engine",
			Name:      "answers_total",
			Help:      "Answer submissions by outcome",
		}, []string{"outcome"}),
		BroadcastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "quiz",
			Subsystem: "engine",
			Name:      "broadcasts_total",
			Help:      "Events fanned out to subscribers",
		}),
		PersistRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "quiz",
			Subsystem: "engine",
			Name:      "persist_retries_total",
			Help:      "Retries of durable result writes after transient failures",
		}),
		SessionsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Subsystem: "engine",
			Name:      "sessions_ended_total",
			Help:      "Ended sessions by trigger",
		}, []string{"trigger"}),
	}
}
