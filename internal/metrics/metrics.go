// Package metrics declares the Prometheus instruments exported by the relay.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Connection metrics
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatrelay_connections_active",
		Help: "The current number of open client connections.",
	})
	TotalConnections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatrelay_connections_total",
		Help: "The total number of client connections accepted.",
	}, []string{"transport"})
	OnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatrelay_online_users",
		Help: "The current number of logged in users.",
	})
	SessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatrelay_session_duration_seconds",
		Help:    "How long client connections stayed open.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	// Message metrics
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatrelay_messages_received_total",
		Help: "The total number of messages received from clients.",
	}, []string{"kind"})
	PayloadsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_payloads_delivered_total",
		Help: "The total number of payloads queued for delivery to clients.",
	})
	DecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_decode_errors_total",
		Help: "The total number of malformed messages discarded.",
	})
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_rate_limited_total",
		Help: "The total number of messages discarded by the rate limiter.",
	})
	SlowSessionsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_slow_sessions_closed_total",
		Help: "The total number of sessions closed because their send queue was full.",
	})

	// Auth metrics
	LoginFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatrelay_login_failures_total",
		Help: "The total number of rejected logins.",
	}, []string{"reason"})
)

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
