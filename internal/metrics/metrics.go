package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors of the planning service.
type Metrics struct {
	PlansProcessed  *prometheus.CounterVec
	ProviderErrors  *prometheus.CounterVec
	RequestSeconds  *prometheus.HistogramVec
	ActiveSessions  prometheus.Gauge
	ObstacleEvents  *prometheus.CounterVec
	FeedConnected   prometheus.Gauge
	FeedReconnects  prometheus.Counter
	PublishedEvents *prometheus.CounterVec
}

// NewMetrics registers the service collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		PlansProcessed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "trafficmodeler_plans_processed_total",
			Help: "Total number of planning requests by outcome.",
		}, []string{"status"}),
		ProviderErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "trafficmodeler_provider_errors_total",
			Help: "Total number of transport errors returned by upstream services.",
		}, []string{"provider"}),
		RequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trafficmodeler_provider_request_duration_seconds",
			Help:    "Duration of requests to the geocoding, routing and prediction services.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		ActiveSessions: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "trafficmodeler_active_sessions",
			Help: "Current number of open planning sessions.",
		}),
		ObstacleEvents: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "trafficmodeler_feed_messages_total",
			Help: "Total number of obstacle feed messages by result (accepted, ignored, malformed).",
		}, []string{"result"}),
		FeedConnected: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "trafficmodeler_feed_connected",
			Help: "1 while the obstacle feed connection is up.",
		}),
		FeedReconnects: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "trafficmodeler_feed_reconnects_total",
			Help: "Total number of obstacle feed reconnection attempts.",
		}),
		PublishedEvents: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "trafficmodeler_obstacles_published_total",
			Help: "Total number of obstacle events republished to NATS by status.",
		}, []string{"status"}),
	}
}
