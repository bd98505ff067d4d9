package logger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors shared by the API and the dashboard session.
// promauto registers them with the default registry on package load.

var (
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chain_refresh_total",
			Help: "Option chain refresh cycles by outcome",
		},
		[]string{"symbol", "outcome"},
	)

	RefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chain_refresh_duration_seconds",
			Help:    "Duration of fetch, normalize and compute for one refresh",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"symbol"},
	)

	ChainGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chain_metric",
			Help: "Latest windowed option chain metric value",
		},
		[]string{"symbol", "metric"},
	)

	AlertsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chain_alerts_total",
			Help: "Alerts fired by the metrics differencer",
		},
		[]string{"symbol", "kind", "severity"},
	)
)
