package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session store
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mcp_sessions_active",
		Help: "The current number of streaming sessions held in memory.",
	})
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcp_sessions_created_total",
		Help: "The total number of streaming sessions opened.",
	})
	SessionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcp_sessions_expired_total",
		Help: "The total number of sessions removed by the expiry sweep.",
	})
	SessionsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcp_sessions_evicted_total",
		Help: "The total number of live sessions evicted because the store was full.",
	})

	// Gateway
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcp_requests_total",
		Help: "The total number of gateway requests by mode and outcome.",
	}, []string{"mode", "outcome"})
	StreamFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcp_stream_frames_total",
		Help: "The total number of SSE or WebSocket frames delivered.",
	})

	// Weather provider
	ProviderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weather_provider_failures_total",
		Help: "The total number of failed provider calls by kind.",
	}, []string{"kind"})
	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "weather_provider_duration_seconds",
		Help:    "Provider call latency by operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
