package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	itemsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mmfeed_items_created_total",
		Help: "The total number of items created, by origin",
	}, []string{"origin"})

	itemsRemoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mmfeed_items_removed_total",
		Help: "The total number of items removed, by reason",
	}, []string{"reason"})

	itemsStored = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mmfeed_items_stored",
		Help: "The number of items currently stored",
	})

	storeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mmfeed_store_errors_total",
		Help: "The total number of failed store operations",
	}, []string{"op"})

	webhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mmfeed_webhook_events_total",
		Help: "The total number of accepted webhook calls, by event",
	}, []string{"event"})

	sseClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mmfeed_sse_clients",
		Help: "The current number of connected SSE clients",
	})

	compactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mmfeed_compactions_total",
		Help: "The total number of store compactions, by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mmfeed_http_request_duration_seconds",
		Help:    "Latency of HTTP requests",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // Start at 0.5ms, double each bucket, 12 buckets
	}, []string{"method", "route"})
)
