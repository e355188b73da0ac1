package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "darky_http_requests_total",
		Help: "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "darky_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	giftMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "darky_gift_mutations_total",
		Help: "Committed gift mutations by action.",
	}, []string{"action"})

	rateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "darky_rate_limit_rejections_total",
		Help: "Requests rejected by the per-IP rate limiter.",
	})
)
