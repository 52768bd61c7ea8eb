package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wt",
		Name:      "searches_total",
		Help:      "Total number of face similarity searches",
	})

	TargetRecomputes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wt",
		Name:      "target_recomputes_total",
		Help:      "Total number of target embedding recomputations",
	}, []string{"trigger"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wt",
		Name:      "inference_duration_seconds",
		Help:      "Duration of ML inference stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	NotifyFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wt",
		Name:      "notify_failures_total",
		Help:      "Total number of failed sibling-service notifications",
	}, []string{"service"})

	MediaJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wt",
		Name:      "media_jobs_total",
		Help:      "Total number of media processing jobs by outcome",
	}, []string{"status"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "wt",
		Name:      "queue_depth",
		Help:      "Number of pending media tasks in queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wt",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "wt",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
